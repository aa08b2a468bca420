package model

import "time"

// Bar is one daily close.
type Bar struct {
	Time  time.Time
	Close float64
}
