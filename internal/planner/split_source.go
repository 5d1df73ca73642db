package planner

import (
	"encoding/json"
	"iter"

	"github.com/google/uuid"

	"github.com/arkilian/ringsplit/pkg/types"
)

// SplitSource is the complete, immutable list of splits of one planning call.
type SplitSource struct {
	id          string
	connectorID string
	splits      []types.Split
}

// NewSplitSource wraps splits in a new source with a fresh id.
func NewSplitSource(connectorID string, splits []types.Split) *SplitSource {
	return &SplitSource{
		id:          uuid.New().String(),
		connectorID: connectorID,
		splits:      append([]types.Split(nil), splits...),
	}
}

// ID returns the unique id of the source.
func (s *SplitSource) ID() string {
	return s.id
}

// ConnectorID returns the id of the connector that produced the splits.
func (s *SplitSource) ConnectorID() string {
	return s.connectorID
}

// Len returns the number of splits.
func (s *SplitSource) Len() int {
	return len(s.splits)
}

// IsEmpty reports whether the table has no data to read.
func (s *SplitSource) IsEmpty() bool {
	return len(s.splits) == 0
}

// Splits returns a copy of the splits in production order.
func (s *SplitSource) Splits() []types.Split {
	return append([]types.Split(nil), s.splits...)
}

// All iterates over the splits in production order.
func (s *SplitSource) All() iter.Seq[types.Split] {
	return func(yield func(types.Split) bool) {
		for _, sp := range s.splits {
			if !yield(sp) {
				return
			}
		}
	}
}

// MarshalJSON renders the source with its id and splits.
func (s *SplitSource) MarshalJSON() ([]byte, error) {
	splits := s.splits
	if splits == nil {
		splits = []types.Split{}
	}
	return json.Marshal(struct {
		ID          string        `json:"id"`
		ConnectorID string        `json:"connector_id"`
		Splits      []types.Split `json:"splits"`
	}{s.id, s.connectorID, splits})
}
