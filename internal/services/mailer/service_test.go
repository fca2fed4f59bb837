package mailer

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/models"
)

func testEmailConfig() common.EmailConfig {
	return common.EmailConfig{
		Enabled:    true,
		Host:       "smtp.example.com",
		Port:       465,
		Username:   "bot@example.com",
		Password:   "secret",
		From:       "bot@example.com",
		FromName:   "TenderWatch",
		Recipients: []string{"one@example.com", "two@example.com"},
		UseTLS:     true,
	}
}

func testBids() []*models.BidRecord {
	return []*models.BidRecord{
		{
			ID:            "abc123",
			ProjectName:   "某某信息化建设项目",
			Budget:        "120万元",
			Purchaser:     "某某市大数据局",
			DocTime:       "3月1日至3月7日",
			SourceURL:     "https://example.com/a",
			SourceTitle:   "招标公告",
			ExtractedTime: time.Now(),
			Status:        models.BidStatusNew,
		},
	}
}

func TestNotify_SendsDigestToAllRecipients(t *testing.T) {
	svc := NewService(testEmailConfig(), common.GetLogger())

	var gotTo []string
	var gotMsg string
	svc.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	if err := svc.Notify(context.Background(), testBids()); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if len(gotTo) != 2 {
		t.Errorf("recipients = %v, want 2", gotTo)
	}
	if !strings.Contains(gotMsg, "multipart/alternative") {
		t.Error("message is not multipart")
	}
	if !strings.Contains(gotMsg, "Subject: =?UTF-8?B?") {
		t.Error("subject is not UTF-8 encoded")
	}
}

func TestNotify_EmptyBatchIsNoop(t *testing.T) {
	svc := NewService(testEmailConfig(), common.GetLogger())

	called := false
	svc.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		called = true
		return nil
	}

	if err := svc.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if called {
		t.Error("send called for empty batch")
	}
}

func TestNotify_UnconfiguredReturnsError(t *testing.T) {
	svc := NewService(common.EmailConfig{Enabled: true}, common.GetLogger())

	if err := svc.Notify(context.Background(), testBids()); err == nil {
		t.Error("expected error for unconfigured mailer")
	}
}

func TestBuildDigests(t *testing.T) {
	bids := testBids()

	html := buildHTMLDigest(bids)
	if !strings.Contains(html, "某某信息化建设项目") || !strings.Contains(html, "120万元") {
		t.Errorf("HTML digest missing bid fields: %s", html)
	}
	if !strings.Contains(html, `href="https://example.com/a"`) {
		t.Error("HTML digest missing source link")
	}

	text := buildTextDigest(bids)
	if !strings.Contains(text, "项目名称：某某信息化建设项目") {
		t.Errorf("text digest missing bid fields: %s", text)
	}
}
