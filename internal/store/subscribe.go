package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/echovault/echovault/internal/model"
)

// ListFunc loads a snapshot for PollSubscribe.
type ListFunc func(ctx context.Context, req model.ListEntriesRequest) ([]*model.Entry, error)

// PollSubscribe turns a list query into a push stream for drivers without native
// change notification. A snapshot is sent first, then again whenever the set of ids
// or any update time changes. List errors skip the tick.
func PollSubscribe(ctx context.Context, list ListFunc, req model.ListEntriesRequest, interval time.Duration) <-chan []*model.Entry {
	if interval <= 0 {
		interval = time.Second
	}
	out := make(chan []*model.Entry, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := ""
		poll := func() bool {
			snap, err := list(ctx, req)
			if err != nil {
				return true
			}
			fp := fingerprint(snap)
			if fp == last {
				return true
			}
			last = fp
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !poll() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !poll() {
					return
				}
			}
		}
	}()
	return out
}

func fingerprint(entries []*model.Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.ID)
		sb.WriteByte('@')
		sb.WriteString(strconv.FormatInt(e.UpdatedAt.UnixNano(), 10))
		sb.WriteByte(';')
	}
	return sb.String()
}
