// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// LocationType enumerates the facility classes served by the unified
// /locations endpoint.
type LocationType string

const (
	LocationBranch         LocationType = "branch"
	LocationATM            LocationType = "atm"
	LocationCRM            LocationType = "crm"
	LocationRTDM           LocationType = "rtdm"
	LocationPriorityCenter LocationType = "priority_center"
	LocationHeadOffice     LocationType = "head_office"
)

// DisplayName returns the human label for a location type, singular form.
func (t LocationType) DisplayName() string {
	switch t {
	case LocationBranch:
		return "Branch"
	case LocationATM:
		return "ATM"
	case LocationCRM:
		return "CRM"
	case LocationRTDM:
		return "RTDM"
	case LocationPriorityCenter:
		return "Priority Center"
	case LocationHeadOffice:
		return "Head Office"
	default:
		return string(t)
	}
}

// LocationQuery is the parameter set for one /locations call.
//
// CountRequested is not sent on the wire; it tells the renderer the user
// asked "how many", so the count sentence must lead the answer.
type LocationQuery struct {
	Type           LocationType `json:"type"`
	City           string       `json:"city,omitempty"`
	Region         string       `json:"region,omitempty"`
	Search         string       `json:"search,omitempty"`
	Limit          int          `json:"limit"`
	Offset         int          `json:"offset"`
	CountRequested bool         `json:"-"`
}

// LocationAddress is the nested address block on a location row.
type LocationAddress struct {
	Line1    string `json:"line1,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// Location is one facility row.
type Location struct {
	Name    string          `json:"name"`
	Type    LocationType    `json:"type"`
	Address LocationAddress `json:"address"`
	Phone   string          `json:"phone,omitempty"`
	Hours   string          `json:"hours,omitempty"`
}

// LocationsResponse is the /locations response body. Total is the full match
// count, independent of the page window.
type LocationsResponse struct {
	Total     int        `json:"total"`
	Locations []Location `json:"locations"`
}
