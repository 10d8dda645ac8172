package redis

import "fmt"

// Session rows are hashes; these are their field names
const (
	fieldID         = "id"
	fieldClosedAt   = "closed_at"
	fieldEntries    = "entries"
	fieldCapacity   = "capacity"
	fieldMainRef    = "main_display_ref"
	fieldReserveRef = "reserve_display_ref"
)

// keys generates the Redis keys for one prefix
type keys struct {
	prefix string
}

// sessionSeq returns the key of the INCR counter behind session sequence numbers
func (k keys) sessionSeq() string {
	return fmt.Sprintf("%s:seq:sessions", k.prefix)
}

// session returns the key of the hash holding one session
func (k keys) session(seq int64) string {
	return fmt.Sprintf("%s:session:%d", k.prefix, seq)
}

// sessionIndex returns the key of the LIST of session sequence numbers, oldest first
func (k keys) sessionIndex() string {
	return fmt.Sprintf("%s:idx:sessions", k.prefix)
}

// playerStats returns the key of the HASH of participant id -> stats JSON
func (k keys) playerStats() string {
	return fmt.Sprintf("%s:player_stats", k.prefix)
}
