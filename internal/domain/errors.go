package domain

import "errors"

var (
	// ErrPatientNotFound the patient id is unknown to the hospital registry
	ErrPatientNotFound = errors.New("patient not found")
	// ErrPatientAlreadyExists a patient with the same hospital id is already registered
	ErrPatientAlreadyExists = errors.New("patient already exists")
	// ErrInvalidPatient the patient payload failed validation
	ErrInvalidPatient = errors.New("invalid patient")
	// ErrInvalidMeasurement the measurement payload failed validation
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrInvalidAdmission the admission payload failed validation
	ErrInvalidAdmission = errors.New("invalid admission")
	// ErrCacheUnavailable the sufficient-statistics cache could not be read or written
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrStoreUnavailable the relational store could not be read or written
	ErrStoreUnavailable = errors.New("store unavailable")
)
