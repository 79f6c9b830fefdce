package app

import (
	"time"

	"testgen-session/internal/domain"
	"testgen-session/internal/state"
)

// QuestionView is a question as shown to the student, without its answer.
type QuestionView struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// View is what a renderer needs to draw the current step of the flow.
type View struct {
	SessionID        int64         `json:"sessionId,omitempty"`
	TestID           int64         `json:"testId,omitempty"`
	Index            int           `json:"index"`
	Total            int           `json:"total"`
	Progress         float64       `json:"progress"`
	Question         *QuestionView `json:"question,omitempty"`
	Selected         int           `json:"selected"`
	Answered         int           `json:"answered"`
	RemainingSeconds int           `json:"remainingSeconds"`
	Loading          bool          `json:"loading"`
	Finalizing       bool          `json:"finalizing"`
	Finished         bool          `json:"finished"`
	Score            *int          `json:"score,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// View renders the engine's current state at the navigator's cursor.
func (e *Engine) View() View {
	return BuildView(e.store.Snapshot(), e.nav.Index(), e.keying, e.Remaining())
}

// BuildView projects st onto the question at index.
func BuildView(st state.State, index int, keying Keying, remaining time.Duration) View {
	v := View{
		Index:            index,
		Selected:         domain.NoSelection,
		RemainingSeconds: int(remaining / time.Second),
		Loading:          st.IsLoading,
		Finalizing:       st.Finalizing,
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	if st.Session != nil {
		v.SessionID = st.Session.ID
		v.TestID = st.Session.TestID
		v.Finished = st.Session.Finished
		if st.Session.Finished {
			score := st.Session.Score
			v.Score = &score
		}
	}
	if st.Test == nil || len(st.Test.Questions) == 0 {
		return v
	}

	test := *st.Test
	v.Total = len(test.Questions)
	if index < 0 || index >= v.Total {
		index = 0
		v.Index = 0
	}
	v.Progress = progress(index, v.Total)
	q := test.Questions[index]
	v.Question = &QuestionView{ID: q.ID, Text: q.Text, Options: append([]string(nil), q.Options...)}

	if st.Session != nil {
		key := keying.KeyAt(test, index)
		for _, a := range st.Session.Answers {
			if _, ok := keying.IndexOf(test, a.QuestionID); !ok {
				continue
			}
			if a.Answered() {
				v.Answered++
			}
			if a.QuestionID == key {
				v.Selected = a.SelectedOption
			}
		}
	}
	return v
}
