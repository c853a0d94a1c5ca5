package analysis

import (
	"sort"

	"ride-analytics/internal/store"
)

// FTPPoint marks a date where the athlete's FTP took a (new) value
type FTPPoint struct {
	Date string `json:"date" yaml:"date"`
	FTP  int    `json:"ftp" yaml:"ftp"`
}

// FTPProgression reduces sessions to FTP change points.
// The first known FTP is always emitted, then every change, and finally the most
// recent session's FTP if its date is not already the last point, so the series
// always reaches the latest ride.
func FTPProgression(sessions []store.Session) []FTPPoint {
	var withFTP []store.Session
	for _, s := range sessions {
		if s.FTP != nil {
			withFTP = append(withFTP, s)
		}
	}
	if len(withFTP) == 0 {
		return nil
	}

	sort.SliceStable(withFTP, func(i, j int) bool {
		return withFTP[i].StartTime.Before(withFTP[j].StartTime)
	})

	var points []FTPPoint
	for _, s := range withFTP {
		if len(points) == 0 || points[len(points)-1].FTP != *s.FTP {
			points = append(points, FTPPoint{
				Date: utcDay(s.StartTime).Format(DateLayout),
				FTP:  *s.FTP,
			})
		}
	}

	last := withFTP[len(withFTP)-1]
	lastDate := utcDay(last.StartTime).Format(DateLayout)
	if points[len(points)-1].Date != lastDate {
		points = append(points, FTPPoint{Date: lastDate, FTP: *last.FTP})
	}

	return points
}
