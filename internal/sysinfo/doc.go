// Package sysinfo collects host CPU, memory, disk and platform figures for
// health endpoints, the system handler and the realtime telemetry loop.
package sysinfo
