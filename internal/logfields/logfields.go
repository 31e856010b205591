// Package logfields provides canonical slog attribute helpers so field
// names do not drift across packages.
package logfields

import "log/slog"

const (
	KeyBoard      = "board"
	KeyRef        = "ref"
	KeyRefKind    = "ref_kind"
	KeyPhase      = "phase"
	KeyVerb       = "verb"
	KeyVersion    = "version"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyBuildID    = "build_id"
	KeyBuildType  = "build_type"
	KeySubject    = "subject"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Board(b string) slog.Attr         { return slog.String(KeyBoard, b) }
func Ref(r string) slog.Attr           { return slog.String(KeyRef, r) }
func RefKind(k string) slog.Attr       { return slog.String(KeyRefKind, k) }
func Phase(p string) slog.Attr         { return slog.String(KeyPhase, p) }
func Verb(v string) slog.Attr          { return slog.String(KeyVerb, v) }
func Version(v string) slog.Attr       { return slog.String(KeyVersion, v) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func BuildType(t string) slog.Attr     { return slog.String(KeyBuildType, t) }
func Subject(s string) slog.Attr       { return slog.String(KeySubject, s) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
