package portal

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParsedCourse is one course row of the grade report, tagged with the term
// context read from the section header above it.
type ParsedCourse struct {
	AcademicYear string
	Semester     string
	YearLevel    string
	YearNumber   int
	CourseName   string
	CourseCode   string
	CreditHour   string
	ECTS         string
	Letter       string
	Detail       DetailRef
}

// ParsedSummary is one term's GPA block.
type ParsedSummary struct {
	AcademicYear string
	Semester     string
	YearLevel    string
	YearNumber   int
	SGP          string
	SGPA         string
	CGP          string
	CGPA         string
	Status       string
}

// Report is the parsed grade report page.
type Report struct {
	Courses   []ParsedCourse
	Summaries []ParsedSummary
}

// Component is one named entry of an assessment breakdown.
type Component struct {
	Name   string `json:"name"`
	Weight string `json:"weight"`
	Result string `json:"result"`
}

// Detail is the parsed assessment breakdown for one course.
type Detail struct {
	Course     string      `json:"course"`
	Components []Component `json:"components"`
	Total      string      `json:"total"`
}

var (
	academicYearRe = regexp.MustCompile(`Academic Year\s*:\s*([^,]+)`)
	yearLevelRe    = regexp.MustCompile(`,\s*(Year [^,]+)`)
	semesterRe     = regexp.MustCompile(`Semester\s*:\s*([^,]+)`)
	romanYearRe    = regexp.MustCompile(`Year\s+(IV|V|I{1,3})`)

	sgpRe    = regexp.MustCompile(`SGP\s*:\s*([\d.]+)`)
	sgpaRe   = regexp.MustCompile(`SGPA\s*:\s*([\d.]+)`)
	cgpRe    = regexp.MustCompile(`CGP\s*:\s*([\d.]+)`)
	cgpaRe   = regexp.MustCompile(`CGPA\s*:\s*([\d.]+)`)
	statusRe = regexp.MustCompile(`Academic Status\s*:\s*([^!]+)`)

	onclickIDsRe = regexp.MustCompile(`'([^']+)'`)
	weightRe     = regexp.MustCompile(`\(([^)]+)\)`)
)

var romanToNumber = map[string]int{"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5}

// ParseGradeReport extracts courses and term summaries from the grade report
// page. A page without the results table yields an empty report, not an
// error; the portal serves that shape for students with no published results.
func ParseGradeReport(raw []byte) (Report, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Report{}, fmt.Errorf("parse grade report: %w", err)
	}

	table := doc.Find("table.table-bordered").First()
	if table.Length() == 0 {
		return Report{}, nil
	}

	var report Report
	var year, semester, yearLevel string
	var yearNumber int

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("yrsm") {
			text := strings.TrimSpace(row.Text())

			if strings.Contains(text, "Academic Year") {
				if m := academicYearRe.FindStringSubmatch(text); m != nil {
					year = strings.TrimSpace(m[1])
					if lm := yearLevelRe.FindStringSubmatch(text); lm != nil {
						yearLevel = strings.TrimSpace(lm[1])
						year = year + ", " + yearLevel
						if rm := romanYearRe.FindStringSubmatch(yearLevel); rm != nil {
							yearNumber = romanToNumber[rm[1]]
						}
					}
				}
				if m := semesterRe.FindStringSubmatch(text); m != nil {
					semester = strings.TrimSpace(m[1])
				}
				return
			}

			if strings.Contains(text, "SGPA") {
				report.Summaries = append(report.Summaries, ParsedSummary{
					AcademicYear: year,
					Semester:     semester,
					YearLevel:    yearLevel,
					YearNumber:   yearNumber,
					SGP:          firstGroup(sgpRe, text, "0"),
					SGPA:         firstGroup(sgpaRe, text, "0"),
					CGP:          firstGroup(cgpRe, text, "0"),
					CGPA:         firstGroup(cgpaRe, text, "0"),
					Status:       firstGroup(statusRe, text, "N/A"),
				})
			}
			return
		}

		cells := row.Find("td")
		if cells.Length() != 7 || !isDigits(strings.TrimSpace(cells.Eq(0).Text())) {
			return
		}

		course := ParsedCourse{
			AcademicYear: year,
			Semester:     semester,
			YearLevel:    yearLevel,
			YearNumber:   yearNumber,
			CourseName:   strings.TrimSpace(cells.Eq(1).Text()),
			CourseCode:   strings.TrimSpace(cells.Eq(2).Text()),
			CreditHour:   strings.TrimSpace(cells.Eq(3).Text()),
			ECTS:         strings.TrimSpace(cells.Eq(4).Text()),
			Letter:       strings.TrimSpace(cells.Eq(5).Text()),
		}

		if onclick, ok := cells.Eq(6).Find("button").Attr("onclick"); ok {
			ids := onclickIDsRe.FindAllStringSubmatch(onclick, -1)
			if len(ids) == 3 {
				course.Detail = DetailRef{
					AcademicYearID: ids[0][1],
					SemesterID:     ids[1][1],
					CourseID:       ids[2][1],
				}
			}
		}

		report.Courses = append(report.Courses, course)
	})

	return report, nil
}

// ParseAssessmentDetail extracts the mark breakdown from the detail fragment.
func ParseAssessmentDetail(raw []byte) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Detail{}, fmt.Errorf("parse assessment detail: %w", err)
	}

	table := doc.Find("table.table-bordered").First()
	if table.Length() == 0 {
		return Detail{}, fmt.Errorf("assessment detail table missing")
	}

	var detail Detail

	if title := doc.Find("tr.text-primary").First(); title.Length() > 0 {
		detail.Course = strings.TrimSpace(strings.ReplaceAll(title.Text(), "Course :", ""))
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("success") {
			text := strings.TrimSpace(row.Text())
			if strings.Contains(text, "Total Mark") {
				detail.Total = strings.TrimSpace(strings.ReplaceAll(text, "Total Mark :", ""))
			}
			return
		}

		cells := row.Find("td")
		if cells.Length() != 3 || !isDigits(strings.TrimSpace(cells.Eq(0).Text())) {
			return
		}

		nameWithWeight := strings.TrimSpace(cells.Eq(1).Text())
		component := Component{
			Name:   nameWithWeight,
			Result: strings.TrimSpace(cells.Eq(2).Text()),
		}

		// "Individual Assignment ( 10% )" carries the weight inline.
		if m := weightRe.FindStringSubmatch(nameWithWeight); m != nil {
			component.Weight = strings.TrimSpace(m[1])
			component.Name = strings.TrimSpace(weightRe.ReplaceAllString(nameWithWeight, ""))
		}

		detail.Components = append(detail.Components, component)
	})

	return detail, nil
}

func firstGroup(re *regexp.Regexp, text, fallback string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return fallback
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
