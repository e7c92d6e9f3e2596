package health

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Dose log statuses
const (
	DoseTaken   = "taken"
	DoseSnoozed = "snoozed"
)

// DoseLog records the user's response to a dispatched reminder
type DoseLog struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	ProfileID      string    `json:"profile_id" gorm:"index"`
	MedicationID   string    `json:"medication_id" gorm:"index"`
	MedicationName string    `json:"medication_name"`
	Date           string    `json:"date" gorm:"index"` // YYYY-MM-DD
	Time           string    `json:"time"`              // HH:MM
	Status         string    `json:"status"`            // taken, snoozed
	RecordedAt     time.Time `json:"recorded_at"`
}

// Store handles dose log persistence
type Store struct {
	db *gorm.DB
}

// NewStore creates a new dose log store
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&DoseLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate dose log schema: %w", err)
	}
	return &Store{db: db}, nil
}

func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "dose_" + hex.EncodeToString(bytes)
}

// RecordDose stores a dose log entry for an occurrence
func (s *Store) RecordDose(profileID string, med Medication, occ Occurrence, status string) (*DoseLog, error) {
	log := &DoseLog{
		ID:             generateID(),
		ProfileID:      profileID,
		MedicationID:   occ.MedicationID,
		MedicationName: med.Name,
		Date:           occ.Date,
		Time:           occ.Time,
		Status:         status,
		RecordedAt:     time.Now(),
	}
	if err := s.db.Create(log).Error; err != nil {
		return nil, fmt.Errorf("failed to record dose: %w", err)
	}
	return log, nil
}

// ListDoses returns the dose logs recorded for a date, oldest first
func (s *Store) ListDoses(date string) ([]DoseLog, error) {
	var logs []DoseLog
	err := s.db.Where("date = ?", date).Order("recorded_at ASC").Find(&logs).Error
	return logs, err
}

// Adherence returns the percentage of scheduled doses on date that were
// marked taken. scheduled is the number of dispatched occurrences.
func (s *Store) Adherence(date string, scheduled int) (float64, error) {
	if scheduled <= 0 {
		return 0, nil
	}
	var logs []DoseLog
	if err := s.db.Where("date = ? AND status = ?", date, DoseTaken).Find(&logs).Error; err != nil {
		return 0, err
	}
	taken := make(map[string]struct{}, len(logs))
	for _, l := range logs {
		taken[l.MedicationID+"@"+l.Time] = struct{}{}
	}
	pct := float64(len(taken)) / float64(scheduled) * 100
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}
