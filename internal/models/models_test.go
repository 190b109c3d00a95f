package models

import (
	"testing"
	"time"
)

func buildAssessment() Assessment {
	return Assessment{Questions: []Question{
		{QuestionID: "work_std_1", Text: "I feel drained by my work.", Domain: DomainWork},
		{QuestionID: "work_std_2", Text: "I dread starting my workday.", Domain: DomainWork},
		{QuestionID: "work_multi_1", Text: "Describe a recent stressful day at work.", Domain: DomainWork, Multimodal: true},
		{QuestionID: "personal_std_1", Text: "I withdraw from friends and family.", Domain: DomainPersonal},
		{QuestionID: "lifestyle_multi_1", Text: "Describe your sleep lately.", Domain: DomainLifestyle, Multimodal: true},
	}}
}

func TestAssessmentValidate(t *testing.T) {
	a := buildAssessment()
	if err := a.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	empty := Assessment{}
	if err := empty.Validate(); err == nil {
		t.Error("expected error for empty assessment")
	}

	dup := Assessment{Questions: []Question{
		{QuestionID: "work_std_1", Text: "a", Domain: DomainWork},
		{QuestionID: "work_std_1", Text: "b", Domain: DomainWork},
	}}
	if err := dup.Validate(); err == nil {
		t.Error("expected error for duplicate question IDs")
	}

	blank := Assessment{Questions: []Question{{QuestionID: "work_std_1", Domain: DomainWork}}}
	if err := blank.Validate(); err == nil {
		t.Error("expected error for empty question text")
	}
}

func TestAssessmentViews(t *testing.T) {
	a := buildAssessment()

	work := a.QuestionsForDomain(DomainWork)
	if len(work) != 3 {
		t.Errorf("expected 3 work questions, got %d", len(work))
	}
	if work[0].QuestionID != "work_std_1" || work[2].QuestionID != "work_multi_1" {
		t.Errorf("work questions out of order: %v", work)
	}

	if got := len(a.MultimodalQuestions()); got != 2 {
		t.Errorf("expected 2 multimodal questions, got %d", got)
	}
	if got := len(a.StandardQuestions()); got != 3 {
		t.Errorf("expected 3 standard questions, got %d", got)
	}

	if _, ok := a.FindQuestion("personal_std_1"); !ok {
		t.Error("expected to find personal_std_1")
	}
	if _, ok := a.FindQuestion("bogus"); ok {
		t.Error("did not expect to find bogus question")
	}
}

func TestSessionMergeResponse(t *testing.T) {
	s := NewSession("s1", "u1", buildAssessment())

	s.MergeResponse("work_std_1", "I feel tired", nil)
	r := s.Responses["work_std_1"]
	if r == nil || r.TextResponse != "I feel tired" {
		t.Fatalf("text response not recorded: %+v", r)
	}

	// A later media-only merge must not clobber the text.
	s.MergeResponse("work_std_1", "", map[string]any{"video": "s3://bucket/v.mp4"})
	r = s.Responses["work_std_1"]
	if r.TextResponse != "I feel tired" {
		t.Errorf("text response was clobbered: %q", r.TextResponse)
	}
	if r.MultimodalInsights["video"] != "s3://bucket/v.mp4" {
		t.Errorf("video insight not merged: %v", r.MultimodalInsights)
	}

	// A later text merge must not clobber the media insight.
	s.MergeResponse("work_std_1", "I feel exhausted", nil)
	r = s.Responses["work_std_1"]
	if r.TextResponse != "I feel exhausted" {
		t.Errorf("text response not replaced: %q", r.TextResponse)
	}
	if r.MultimodalInsights["video"] != "s3://bucket/v.mp4" {
		t.Errorf("video insight lost after text merge: %v", r.MultimodalInsights)
	}

	if len(s.Responses) != 1 {
		t.Errorf("expected a single merged response, got %d", len(s.Responses))
	}
}

func TestSessionTouch(t *testing.T) {
	s := NewSession("s1", "u1", buildAssessment())
	before := s.UpdatedAt
	time.Sleep(time.Millisecond)
	s.Touch()
	if !s.UpdatedAt.After(before) {
		t.Error("Touch did not advance UpdatedAt")
	}
}

func TestDomainMetadata(t *testing.T) {
	if len(AllDomains()) != 3 {
		t.Fatalf("expected 3 domains, got %d", len(AllDomains()))
	}
	if AllDomains()[0] != DomainWork {
		t.Errorf("expected WORK first, got %s", AllDomains()[0])
	}
	for _, d := range AllDomains() {
		if !IsValidDomain(d) {
			t.Errorf("domain %s reported invalid", d)
		}
		if d.DisplayName() == "" || d.Description() == "" {
			t.Errorf("domain %s missing metadata", d)
		}
	}
	if IsValidDomain("FINANCE") {
		t.Error("unexpected domain reported valid")
	}
}
