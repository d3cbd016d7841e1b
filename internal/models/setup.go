package models

import (
	"fmt"
	"strings"
)

// Qualification is an entry of the qualification vocabulary.
type Qualification struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// Area is a locality the institute serves; admissions store it as "place".
type Area struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	City     string `json:"city"`
	IsActive bool   `json:"isActive"`
}

// Batch is a teaching time slot.
type Batch struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsActive    bool   `json:"isActive"`
}

// Label is the display string: the explicit display name, else "<start> to <end>".
func (b Batch) Label() string {
	if strings.TrimSpace(b.DisplayName) != "" {
		return b.DisplayName
	}
	if b.StartTime == "" && b.EndTime == "" {
		return b.Name
	}
	return fmt.Sprintf("%s to %s", b.StartTime, b.EndTime)
}

type EnquiryMethod struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type Fee struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	CourseID string  `json:"courseId"`
	IsActive bool    `json:"isActive"`
}

type Course struct {
	ID             string  `json:"_id"`
	Name           string  `json:"name"`
	Code           string  `json:"code"`
	DurationMonths int     `json:"durationMonths"`
	Fee            float64 `json:"fee"`
	IsActive       bool    `json:"isActive"`
}

type Faculty struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
}

// SetupData is the bulk vocabulary bundle served by GET /setup.
type SetupData struct {
	Qualifications []Qualification `json:"qualifications"`
	Areas          []Area          `json:"areas"`
	Batches        []Batch         `json:"batches"`
	EnquiryMethods []EnquiryMethod `json:"enquiryMethods"`
	Fees           []Fee           `json:"fees"`
}

// Active returns a copy holding only active entries.
func (d SetupData) Active() SetupData {
	out := SetupData{
		Qualifications: make([]Qualification, 0, len(d.Qualifications)),
		Areas:          make([]Area, 0, len(d.Areas)),
		Batches:        make([]Batch, 0, len(d.Batches)),
		EnquiryMethods: make([]EnquiryMethod, 0, len(d.EnquiryMethods)),
		Fees:           make([]Fee, 0, len(d.Fees)),
	}
	for _, q := range d.Qualifications {
		if q.IsActive {
			out.Qualifications = append(out.Qualifications, q)
		}
	}
	for _, a := range d.Areas {
		if a.IsActive {
			out.Areas = append(out.Areas, a)
		}
	}
	for _, b := range d.Batches {
		if b.IsActive {
			out.Batches = append(out.Batches, b)
		}
	}
	for _, m := range d.EnquiryMethods {
		if m.IsActive {
			out.EnquiryMethods = append(out.EnquiryMethods, m)
		}
	}
	for _, f := range d.Fees {
		if f.IsActive {
			out.Fees = append(out.Fees, f)
		}
	}
	return out
}

// Option is one selectable vocabulary entry. Forms store ID; Label is for display only.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// OptionList is one independently loaded option list.
type OptionList struct {
	Items  []Option `json:"items"`
	Loaded bool     `json:"loaded"`
	Error  string   `json:"error,omitempty"`
}

// FormOptions holds every option list the admission form needs.
// A failed list has Loaded=false and an Error; the others are unaffected.
type FormOptions struct {
	Qualifications OptionList `json:"qualifications"`
	Areas          OptionList `json:"areas"`
	Batches        OptionList `json:"batches"`
	Courses        OptionList `json:"courses"`
	Faculty        OptionList `json:"faculty"`
	Sources        OptionList `json:"sources"`
}
