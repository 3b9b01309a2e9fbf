// Package gps turns a raw NMEA byte stream from a GNSS receiver into
// normalized location updates.
//
// The pipeline is:
//
//   - Reader frames arbitrary chunks into '\n'-terminated lines in a fixed
//     buffer, dropping oversized lines and resynchronizing on the next '\n'.
//   - Dispatcher classifies and decodes each line (RMC, GGA, GSA, GSV, VTG)
//     and calls a Notifier, ending every line with UpdateCycleComplete.
//   - Fix is a Notifier that folds updates into a Snapshot.
//   - Service wires a serial, gpsd, TCP or simulated source into the pipeline.
package gps
