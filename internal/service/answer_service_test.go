package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository/memory"
)

func newAnswerFixture(t *testing.T) (*AnswerService, *memory.DB, *model.QuizSession) {
	t.Helper()
	db := memory.New()
	ctx := context.Background()

	student := &model.Student{FullName: "Dewi", Class: "XII", School: "SMA 5"}
	if err := db.Students().Create(ctx, student); err != nil {
		t.Fatalf("create student: %v", err)
	}
	sess := &model.QuizSession{StudentID: student.ID, SessionToken: "tok-1", CurrentLevel: 1, Status: model.SessionStatusActive}
	if err := db.Sessions().Create(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return NewAnswerService(db.Sessions(), nil, zerolog.Nop()), db, sess
}

func TestGrade(t *testing.T) {
	cases := []struct {
		selected, correct string
		want              bool
	}{
		{"A", "A", true},
		{"A", "B", false},
		{"a", "A", false},
		{"A ", "A", false},
		{"", "", true},
	}
	for _, c := range cases {
		if got := Grade(c.selected, c.correct); got != c.want {
			t.Fatalf("Grade(%q, %q) = %t, want %t", c.selected, c.correct, got, c.want)
		}
	}
}

func TestSubmitScoresAndAdvances(t *testing.T) {
	svc, _, sess := newAnswerFixture(t)
	ctx := context.Background()
	taken := 12

	got, ans, err := svc.Submit(ctx, SubmitInput{
		SessionID: sess.ID, Level: 3, QuestionID: "L3-Q1", QuestionText: "2+2?",
		SelectedAnswer: "4", CorrectAnswer: "4", TimeTaken: &taken,
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !ans.IsCorrect || ans.PointsEarned != 30 {
		t.Fatalf("answer = (correct %t, points %d), want (true, 30)", ans.IsCorrect, ans.PointsEarned)
	}
	if got.CurrentLevel != 3 || got.CurrentQuestion != 1 || got.WrongCount != 0 {
		t.Fatalf("progress = %+v", got)
	}

	got, ans, err = svc.Submit(ctx, SubmitInput{
		SessionID: sess.ID, Level: 2, QuestionID: "L2-Q1", SelectedAnswer: "B", CorrectAnswer: "C",
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if ans.IsCorrect || ans.PointsEarned != 0 {
		t.Fatalf("wrong answer earned points: %+v", ans)
	}
	if got.CurrentLevel != 3 {
		t.Fatalf("current level decreased to %d", got.CurrentLevel)
	}
	if got.CurrentQuestion != 2 || got.WrongCount != 1 {
		t.Fatalf("progress = %+v", got)
	}
}

func TestSubmitLevelZeroEarnsNothing(t *testing.T) {
	svc, _, sess := newAnswerFixture(t)
	_, ans, err := svc.Submit(context.Background(), SubmitInput{
		SessionID: sess.ID, Level: 0, QuestionID: "warmup", SelectedAnswer: "A", CorrectAnswer: "A",
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !ans.IsCorrect || ans.PointsEarned != 0 {
		t.Fatalf("level 0 answer = %+v", ans)
	}
}

func TestSubmitFillsPlaceholderText(t *testing.T) {
	svc, db, sess := newAnswerFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Submit(ctx, SubmitInput{
		SessionID: sess.ID, Level: 1, QuestionID: "img-7", QuestionText: "  ", SelectedAnswer: "A", CorrectAnswer: "B",
	}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	answers, _ := db.Answers().ListBySession(ctx, sess.ID)
	if len(answers) != 1 {
		t.Fatalf("stored answers = %d, want 1", len(answers))
	}
	if answers[0].QuestionText != "[Soal bergambar] img-7" {
		t.Fatalf("question text = %q", answers[0].QuestionText)
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	svc, _, sess := newAnswerFixture(t)
	neg := -1

	for _, in := range []SubmitInput{
		{SessionID: sess.ID, Level: -1, QuestionID: "q"},
		{SessionID: sess.ID, Level: 1, QuestionID: " "},
		{SessionID: sess.ID, Level: 1, QuestionID: "q", TimeTaken: &neg},
	} {
		if _, _, err := svc.Submit(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("Submit(%+v) error = %v, want ErrValidation", in, err)
		}
	}
}

func TestSubmitUnknownAndClosedSessions(t *testing.T) {
	svc, db, sess := newAnswerFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Submit(ctx, SubmitInput{SessionID: 9999, Level: 1, QuestionID: "q"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown session error = %v, want ErrSessionNotFound", err)
	}

	closed, err := db.Sessions().Close(ctx, sess.ID, model.SessionStatusCompleted, sess.StartedAt)
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if closed.Status != model.SessionStatusCompleted || closed.CompletedAt == nil {
		t.Fatalf("closed session = %+v", closed)
	}
	again, err := db.Sessions().Close(ctx, sess.ID, model.SessionStatusTimeout, sess.StartedAt)
	if err != nil || again.Status != model.SessionStatusCompleted {
		t.Fatalf("second Close = %+v, %v; want the first status kept", again, err)
	}
	if _, _, err := svc.Submit(ctx, SubmitInput{SessionID: sess.ID, Level: 1, QuestionID: "q"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("closed session error = %v, want ErrSessionClosed", err)
	}

	answers, _ := db.Answers().ListBySession(ctx, sess.ID)
	if len(answers) != 0 {
		t.Fatalf("rejected answer was stored")
	}
}

func TestSubmitConcurrentAnswersAreAllCounted(t *testing.T) {
	svc, db, sess := newAnswerFixture(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			selected := "A"
			if i%5 == 0 {
				selected = "B"
			}
			if _, _, err := svc.Submit(ctx, SubmitInput{
				SessionID: sess.ID, Level: i % 4, QuestionID: "q", SelectedAnswer: selected, CorrectAnswer: "A",
			}); err != nil {
				t.Errorf("Submit returned error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := db.Sessions().GetByID(ctx, sess.ID)
	if got.CurrentQuestion != n {
		t.Fatalf("current_question = %d, want %d", got.CurrentQuestion, n)
	}
	if got.WrongCount != 5 {
		t.Fatalf("wrong_count = %d, want 5", got.WrongCount)
	}
	if got.CurrentLevel != 3 {
		t.Fatalf("current_level = %d, want 3", got.CurrentLevel)
	}
}
