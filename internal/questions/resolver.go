package questions

import (
	"fmt"

	"hideseek/internal/geo"
)

// Outcome is a resolved answer plus its exclusion zone. Preview and
// Answer produce outcomes through the identical code path; the only
// difference is which hider position the caller passes in.
type Outcome struct {
	Answer    string    `json:"answer"`
	Exclusion Exclusion `json:"exclusion"`
}

// resolve computes the definitive answer for a question against a hider
// position. The question must be answerable (thermometers must have an
// end position).
func resolve(q *Question, hider geo.Point) (Outcome, error) {
	switch q.Type {
	case TypeRadar:
		return resolveRadar(q.SeekerStart, q.RadiusM, hider), nil
	case TypeThermometer:
		if q.SeekerEnd == nil {
			return Outcome{}, fmt.Errorf("thermometer question %s has no end position", q.ID)
		}
		return resolveThermometer(q.SeekerStart, *q.SeekerEnd, hider), nil
	}
	return Outcome{}, fmt.Errorf("unknown question type %q", q.Type)
}

// resolveRadar: yes iff the hider is within the radius (inclusive
// boundary). A yes rules out everything outside the circle, a no rules
// out the inside. The answer always uses the exact distance formula; the
// polygon is for rendering only.
func resolveRadar(center geo.Point, radiusM float64, hider geo.Point) Outcome {
	polygon := geo.CirclePolygon(center, radiusM, geo.CircleSegments)
	if geo.CircleContains(center, radiusM, hider) {
		return Outcome{
			Answer:    AnswerYes,
			Exclusion: Exclusion{Polygon: polygon, RuledOut: RuledOutOutside},
		}
	}
	return Outcome{
		Answer:    AnswerNo,
		Exclusion: Exclusion{Polygon: polygon, RuledOut: RuledOutInside},
	}
}

// resolveThermometer: closer iff the hider sits on the side of the
// perpendicular bisector nearer the seeker's end point. Equidistant
// counts as farther. The exclusion covers the half-plane the answer
// ruled out.
func resolveThermometer(start, end, hider geo.Point) Outcome {
	if geo.BisectorSide(start, end, hider) == geo.CloserToB {
		return Outcome{
			Answer: AnswerCloser,
			Exclusion: Exclusion{
				Polygon:  geo.HalfPlanePolygon(start, end, geo.CloserToA),
				RuledOut: RuledOutCloserToStart,
			},
		}
	}
	return Outcome{
		Answer: AnswerFarther,
		Exclusion: Exclusion{
			Polygon:  geo.HalfPlanePolygon(start, end, geo.CloserToB),
			RuledOut: RuledOutCloserToEnd,
		},
	}
}
