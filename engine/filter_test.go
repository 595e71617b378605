package engine

import (
	"testing"

	"github.com/xiaoyuanzhu-com/sessiond/engine/models"
)

func userMsg(uuid string, sidechain bool) *models.UserSessionMessage {
	m := &models.UserSessionMessage{}
	m.Type = "user"
	m.UUID = uuid
	m.IsSidechain = &sidechain
	return m
}

func assistantMsg(uuid string, sidechain bool) *models.AssistantSessionMessage {
	m := &models.AssistantSessionMessage{}
	m.Type = "assistant"
	m.UUID = uuid
	m.IsSidechain = &sidechain
	return m
}

func TestIsInternal_SidechainRecords(t *testing.T) {
	if IsInternal(userMsg("u1", false)) {
		t.Error("expected normal user record to be visible")
	}
	if !IsInternal(userMsg("u2", true)) {
		t.Error("expected sidechain user record to be internal")
	}
	if IsInternal(assistantMsg("a1", false)) {
		t.Error("expected normal assistant record to be visible")
	}
	if !IsInternal(assistantMsg("a2", true)) {
		t.Error("expected sidechain assistant record to be internal")
	}
}

func TestIsInternal_ControlRecords(t *testing.T) {
	summary := &models.SummarySessionMessage{Summary: "Fix the build"}
	summary.Type = "summary"
	if !IsInternal(summary) {
		t.Error("expected summary record to be internal")
	}

	system := &models.SystemSessionMessage{Subtype: "init"}
	system.Type = "system"
	if !IsInternal(system) {
		t.Error("expected system record to be internal")
	}
}

func TestIsInternal_UnknownTypeRecords(t *testing.T) {
	unknown := &models.UnknownSessionMessage{}
	unknown.Type = "future_record"
	if !IsInternal(unknown) {
		t.Error("expected unknown record type to be internal")
	}
}

func TestIsInternal_MissingSidechainFlag(t *testing.T) {
	// Records without the flag at all count as visible.
	m := &models.UserSessionMessage{}
	m.Type = "user"
	if IsInternal(m) {
		t.Error("expected record without sidechain flag to be visible")
	}
}

func TestFilterVisible_PreservesOrder(t *testing.T) {
	summary := &models.SummarySessionMessage{Summary: "s"}
	summary.Type = "summary"

	msgs := []models.SessionMessageI{
		userMsg("u1", false),
		summary,
		assistantMsg("a1", true),
		assistantMsg("a2", false),
		userMsg("u2", false),
	}

	visible := FilterVisible(msgs)
	if len(visible) != 3 {
		t.Fatalf("expected 3 visible records, got %d", len(visible))
	}

	got := []string{visible[0].GetUUID(), visible[1].GetUUID(), visible[2].GetUUID()}
	want := []string{"u1", "a2", "u2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFilterVisible_EmptyInput(t *testing.T) {
	if got := FilterVisible(nil); len(got) != 0 {
		t.Errorf("expected empty result for nil input, got %d records", len(got))
	}
}
