package autosession

// wait blocks until dispatched calls have returned
func (m *Monitor) wait() {
	m.calls.Wait()
}
