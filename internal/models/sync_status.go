package models

import "time"

// GroupKey identifies one context group.
type GroupKey struct {
	CampusID     string
	DepartmentID string
	AcademicYear string
	Semester     string
}

// Key returns the group key of a status row.
func (s GroupSyncStatus) Key() GroupKey {
	return GroupKey{
		CampusID:     s.CampusID,
		DepartmentID: s.DepartmentID,
		AcademicYear: s.AcademicYear,
		Semester:     s.Semester,
	}
}

// GroupSyncStatus tracks scraping freshness for one context group, the set of
// users sharing campus, department, academic year and semester. It is created
// lazily on the first successful probe of the group and mutated only by the
// sync orchestrator.
type GroupSyncStatus struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CampusID       string     `gorm:"size:50;uniqueIndex:uq_group_status,priority:1" json:"campus_id"`
	DepartmentID   string     `gorm:"size:50;uniqueIndex:uq_group_status,priority:2" json:"department_id"`
	AcademicYear   string     `gorm:"size:100;uniqueIndex:uq_group_status,priority:3" json:"academic_year"`
	Semester       string     `gorm:"size:50;uniqueIndex:uq_group_status,priority:4" json:"semester"`
	LastCheckedAt  time.Time  `json:"last_checked_at"`
	LastFullSyncAt *time.Time `json:"last_full_sync_at"`
}
