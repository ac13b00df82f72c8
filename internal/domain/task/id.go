package task

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// ID identifies a sub-task and records whether the id was assigned by the
// server or drawn from the local sequence ahead of persistence. The planner
// classifies create/update/delete by this provenance.
type ID struct {
	server string
	seq    uint64
}

// Persisted wraps a server-assigned id.
func Persisted(server string) ID {
	return ID{server: server}
}

// Provisional wraps a client-assigned sequence number.
func Provisional(seq uint64) ID {
	return ID{seq: seq}
}

// IsProvisional reports whether the id has not yet been persisted.
func (id ID) IsProvisional() bool {
	return id.server == ""
}

// Server returns the server-assigned id, or "" for provisional ids.
func (id ID) Server() string {
	return id.server
}

func (id ID) String() string {
	if id.IsProvisional() {
		return fmt.Sprintf("local:%d", id.seq)
	}
	return id.server
}

// MarshalJSON emits the server id. Provisional ids never cross the wire;
// creates are sent without an id and take the server's assignment back.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.server)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = Persisted(s)
	return nil
}

// Sequence hands out provisional ids. A single instance per process is
// enough; ids only need to be unique within one client session.
type Sequence struct {
	n atomic.Uint64
}

// Next returns a fresh provisional id.
func (s *Sequence) Next() ID {
	return Provisional(s.n.Add(1))
}
