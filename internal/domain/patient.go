package domain

import "time"

// AdmissionDateLayout wire layout of admission dates (dd/mm/yyyy)
const AdmissionDateLayout = "02/01/2006"

// Patient patient domain model (maps to the patients table)
// ID is the hospital-issued patient id, not the row key
type Patient struct {
	ID  int64 `db:"id" json:"id"`
	Age int   `db:"age" json:"age"`
}

// Admission ICU admission of a patient (maps to the admissions table)
type Admission struct {
	PatientID     int64      `db:"patient_id" json:"patient_id"`
	DateAdmission time.Time  `db:"date_admission" json:"date_admission"`
	DateDischarge *time.Time `db:"date_discharge" json:"date_discharge"` // nullable, still admitted
}
