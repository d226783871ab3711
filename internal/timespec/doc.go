// Package timespec evaluates the time specification mini-language used by
// time triggers and time-active guards.
//
// Specifications are plain strings, parsed on every evaluation:
//
//	cron(min hour day month weekday)   five cron fields, weekday 0 = Sunday
//	once(<datetime>)                   a single instant, re-anchored to the
//	                                   next day once today's has passed
//	period(<start>, <interval>[, <end>])
//	range(<start>, <end>)              active checks only
//
// A datetime phrase is an optional date (Y/M/D, Y-M-D, M/D, a weekday
// name, today, tomorrow), an optional time of day (H:M[:S], sunrise,
// sunset, noon, midnight) and an optional trailing offset such as
// "+30 min" or "-1.5h".
//
// All functions are pure: the current time is always passed in, and
// sunrise and sunset come from a SunProvider. Malformed entries never
// match; Validate reports why.
package timespec
