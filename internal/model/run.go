// Package model holds the persisted types shared by the store, the analysis
// service and the HTTP API.
package model

import (
	"encoding/json"
	"time"
)

// RunKind names the analysis a run performed.
type RunKind string

const (
	RunKindForma  RunKind = "forma250"
	RunKindExtent RunKind = "extent"
)

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusQueued, RunStatusComplete, RunStatusFailed:
		return true
	}
	return false
}

// Run is one recorded analysis request and its outcome. Params and Result
// are stored as the JSON the analysis service produced.
type Run struct {
	ID        string          `json:"id" yaml:"id"`
	Kind      RunKind         `json:"kind" yaml:"kind"`
	Params    json.RawMessage `json:"params" yaml:"-"`
	Status    RunStatus       `json:"status" yaml:"status"`
	Result    json.RawMessage `json:"result,omitempty" yaml:"-"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
	CacheHit  bool            `json:"cache_hit" yaml:"cache_hit"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// Duration is the time between creation and the last update.
func (r Run) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.CreatedAt)
}
