package core

import (
	"time"

	"tzevents/pkg/timezone"
)

// ConvertText reads dateTime in the from zone, or as the instant it names
// when it carries an offset, and expresses it in the to zone.
func ConvertText(from string, to string, dateTime string) (*ConvertResponse, error) {
	value, absolute, err := timezone.ParseWallClock(dateTime)
	if err != nil {
		return nil, err
	}

	var conversion timezone.Conversion
	if absolute {
		conversion, err = timezone.ConvertInstant(value, from, to)
	} else {
		conversion, err = timezone.Convert(value, from, to)
	}

	if err != nil {
		return nil, err
	}

	return &ConvertResponse{
		InputTime:      conversion.Input.Format(time.RFC3339Nano),
		InputTimezone:  conversion.InputZone,
		OutputTime:     conversion.Output.Format(time.RFC3339Nano),
		OutputTimezone: conversion.OutputZone,
		UtcTime:        conversion.UTC.Format(time.RFC3339Nano),
	}, nil
}
