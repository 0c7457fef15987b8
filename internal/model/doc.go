// Package model defines the attendance data shared by every layer of absensi.
//
// The types here are plain snapshots: they carry no behaviour beyond
// validation helpers and conversions. The mutable aggregate lives in
// internal/attendance; persistence and realtime collaborators exchange
// Session and Profile values through the ports declared in ports.go.
//
// # Canonical Form
//
// Session snapshots have a content fingerprint computed from RFC 8785
// canonical JSON (see canonical.go and fingerprint.go). The reconciler uses it
// to recognise the echo of its own write when the realtime bus reports it back.
package model
