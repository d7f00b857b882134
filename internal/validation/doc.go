// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

// Package validation validates API request parameters with
// go-playground/validator v10.
//
// The singleton validator registers:
//   - eventtype: a snake_case identifier of at most 64 characters
//   - a struct-level rule for models.DateRange: both bounds present, end not
//     before start, at most MaxRangeDays day buckets
//
// Field names in errors come from the `query` struct tag, so messages name
// the query parameter the caller actually sent:
//
//	type rangeRequest struct {
//	    Range      models.DateRange
//	    EventTypes []string `query:"event_type" validate:"max=20,dive,eventtype"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondError(w, http.StatusBadRequest, verr.ToAPIError())
//	    return
//	}
package validation
