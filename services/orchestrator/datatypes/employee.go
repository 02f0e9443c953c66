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

// Employee is one phonebook row as served by the directory store.
//
// The store also maintains a weighted full-text search vector over these
// fields (name weighted highest, designation/department medium,
// division/email lowest); that vector is a database column and is not
// carried on the struct.
type Employee struct {
	EmployeeID  string `json:"employee_id"`
	FullName    string `json:"full_name"`
	Designation string `json:"designation"`
	Department  string `json:"department"`
	Division    string `json:"division"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
	IPPhone     string `json:"ip_phone"`
}
