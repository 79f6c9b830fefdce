package domain

// NoSelection marks an answer for a question the student never answered.
const NoSelection = -1

// Question is a multiple-choice question. CorrectAnswer indexes Options.
type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Test is an ordered collection of questions generated for a lecture.
type Test struct {
	ID        int64      `json:"id"`
	LectureID int64      `json:"lectureId"`
	Questions []Question `json:"questions"`
}

// Answer is one student's selection for one question. IsCorrect is a
// placeholder until the session is finalized.
type Answer struct {
	QuestionID     int  `json:"questionId"`
	SelectedOption int  `json:"selectedOption"`
	IsCorrect      bool `json:"isCorrect"`
}

// Answered reports whether an option was selected.
func (a Answer) Answered() bool {
	return a.SelectedOption != NoSelection
}

// Session is one student's timed attempt at one test.
type Session struct {
	ID        int64     `json:"id"`
	TestID    int64     `json:"testId"`
	StudentID int64     `json:"studentId"`
	StartTime WallClock `json:"startTime"`
	EndTime   WallClock `json:"endTime"`
	Answers   []Answer  `json:"answers"`
	Score     int       `json:"score"`
	Finished  bool      `json:"finished"`
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	out := s
	if s.Answers != nil {
		out.Answers = append([]Answer(nil), s.Answers...)
	}
	return out
}

// Clone returns a deep copy of t.
func (t Test) Clone() Test {
	out := t
	if t.Questions != nil {
		out.Questions = make([]Question, len(t.Questions))
		for i, q := range t.Questions {
			q.Options = append([]string(nil), q.Options...)
			out.Questions[i] = q
		}
	}
	return out
}

// NewSession is the payload sent to the authority to open an attempt.
type NewSession struct {
	TestID    int64     `json:"testId"`
	StudentID int64     `json:"studentId"`
	StartTime WallClock `json:"startTime"`
	EndTime   WallClock `json:"endTime"`
}
