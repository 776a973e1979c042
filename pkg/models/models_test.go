package models

import "testing"

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name string
		c    StatusCounts
		want JobStatus
	}{
		{"empty", StatusCounts{}, JobStatusRunning},
		{"all queued", StatusCounts{Queued: 5}, JobStatusPending},
		{"all succeeded", StatusCounts{Succeeded: 5}, JobStatusCompleted},
		{"all failed", StatusCounts{Failed: 3}, JobStatusCompleted},
		{"mixed terminal", StatusCounts{Succeeded: 2, Failed: 1}, JobStatusCompleted},
		{"some processing", StatusCounts{Queued: 2, Processing: 1}, JobStatusRunning},
		{"partial completion", StatusCounts{Queued: 1, Succeeded: 1}, JobStatusRunning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.c); got != tc.want {
				t.Errorf("DeriveStatus(%+v) = %q, want %q", tc.c, got, tc.want)
			}
		})
	}
}

func TestDeriveProgress(t *testing.T) {
	cases := []struct {
		name string
		c    StatusCounts
		want Progress
	}{
		{"empty", StatusCounts{}, Progress{0, 0, 0}},
		{"one third", StatusCounts{Succeeded: 1, Queued: 2}, Progress{3, 1, 33}},
		{"two thirds rounds up", StatusCounts{Succeeded: 2, Queued: 1}, Progress{3, 2, 67}},
		{"half rounds away from zero", StatusCounts{Succeeded: 1, Queued: 7}, Progress{8, 1, 13}},
		{"all done", StatusCounts{Succeeded: 4}, Progress{4, 4, 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveProgress(tc.c); got != tc.want {
				t.Errorf("DeriveProgress(%+v) = %+v, want %+v", tc.c, got, tc.want)
			}
		})
	}
}

func TestStatusCountsTotalAndCompleted(t *testing.T) {
	c := StatusCounts{Queued: 1, Processing: 2, Succeeded: 3, Failed: 4}
	if got := c.Total(); got != 10 {
		t.Errorf("Total() = %d, want 10", got)
	}
	if got := c.Completed(); got != 7 {
		t.Errorf("Completed() = %d, want 7", got)
	}
}
