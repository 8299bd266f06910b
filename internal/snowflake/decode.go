package snowflake

import "time"

// Parts are the fields of a decoded id.
type Parts struct {
	// Millis is the timestamp field, in milliseconds since the epoch.
	Millis    int64
	Timestamp time.Time
	WorkerID  int64
	Sequence  int64
}

// Decode splits an id produced with cfg and epoch back into its fields.
// Ids from the narrow layout only retain the low bits of their timestamp.
func Decode(id int64, cfg Config, epoch time.Time) Parts {
	millis := id >> cfg.timestampShift()
	return Parts{
		Millis:    millis,
		Timestamp: epoch.Add(time.Duration(millis) * time.Millisecond).UTC(),
		WorkerID:  (id >> cfg.workerIDShift()) & cfg.MaxWorkerID(),
		Sequence:  id & cfg.sequenceMask(),
	}
}

// Decode splits an id produced by g.
func (g *Generator) Decode(id int64) Parts {
	return Decode(id, g.cfg, g.Epoch())
}
