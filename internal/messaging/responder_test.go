package messaging

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brightvolt/quotebot/internal/flow"
	"github.com/brightvolt/quotebot/internal/flowdef"
	"github.com/brightvolt/quotebot/internal/merge"
	"github.com/brightvolt/quotebot/internal/store"
)

// memoryObjects backs both storage interfaces for tests.
type memoryObjects struct {
	objects  map[string][]byte
	storeErr error
}

func (m *memoryObjects) FetchTemplate(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *memoryObjects) StoreArtifact(ctx context.Context, name string, data []byte) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.objects[name] = append([]byte(nil), data...)
	return nil
}

func (m *memoryObjects) TemporaryLink(ctx context.Context, name string, ttl time.Duration) (string, error) {
	return "https://example.test/" + name, nil
}

func minimalTemplate(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p><w:r><w:t>{{CLIENT_NAME}} {{PRICE_IN_WORDS}}</w:t></w:r></w:p></w:body>
</w:document>`,
	}
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to finalize zip: %v", err)
	}
	return buf.Bytes()
}

func newTestResponder(t *testing.T) (*Responder, *MockSender, *memoryObjects) {
	t.Helper()
	objects := &memoryObjects{objects: map[string][]byte{
		"template_ongrid.docx": minimalTemplate(t),
		"template_hybrid.docx": minimalTemplate(t),
	}}
	engine := flow.NewEngine(store.NewInMemoryStore(), flowdef.Default())
	merger := merge.New(objects, objects)
	sender := &MockSender{}
	return NewResponder(engine, merger, sender), sender, objects
}

// send feeds one inbound SMS and returns the reply it produced.
func send(t *testing.T, r *Responder, sender *MockSender, from, body string) string {
	t.Helper()
	before := len(sender.Sent)
	if err := r.HandleInbound(context.Background(), from, body); err != nil {
		t.Fatalf("HandleInbound(%q) failed: %v", body, err)
	}
	if len(sender.Sent) == before {
		t.Fatalf("HandleInbound(%q) sent no reply", body)
	}
	last := sender.Sent[len(sender.Sent)-1]
	if last.To != from {
		t.Fatalf("reply went to %q, want %q", last.To, from)
	}
	return last.Body
}

func TestSMSConversationEndToEnd(t *testing.T) {
	r, sender, objects := newTestResponder(t)
	from := "+15550001111"

	turns := []struct {
		inbound string
		want    string
	}{
		{"quote", "Enter Client Name:"},
		{"Acme Corp", "Select Capacity by replying with a number:"},
		{"2", "Enter Sanctioned Load:"},
		{"5 KW", "Select Solar Panel Model"},
		{"1", "Select Spv Module"},
		{"3", "Enter Inverter:"},
		{"UTL Gamma Plus", "Select Inverter Type"},
		{"1", "Enter No Inverter:"}, // 1 = On-Grid
		{"1", "Select Phase"},
		{"1", "Enter No Panels:"},
		{"9", "Enter Price:"},
	}
	for _, turn := range turns {
		reply := send(t, r, sender, from, turn.inbound)
		if !strings.Contains(reply, turn.want) {
			t.Fatalf("reply to %q = %q, want it to contain %q", turn.inbound, reply, turn.want)
		}
	}

	reply := send(t, r, sender, from, "₹3,50,000")
	if !strings.Contains(reply, "Quotation ready!") {
		t.Fatalf("final reply = %q, want delivery message", reply)
	}
	if !strings.Contains(reply, "QUOTE_Acme_Corp_5_KW.docx") {
		t.Errorf("final reply = %q, missing artifact name", reply)
	}
	if !strings.Contains(reply, "https://example.test/QUOTE_Acme_Corp_5_KW.docx") {
		t.Errorf("final reply = %q, missing download link", reply)
	}
	if _, ok := objects.objects["QUOTE_Acme_Corp_5_KW.docx"]; !ok {
		t.Error("artifact was not stored")
	}

	// The session is cleared after delivery, so the next text is greeted.
	reply = send(t, r, sender, from, "hello")
	if !strings.Contains(reply, "Text QUOTE to start") {
		t.Errorf("post-delivery reply = %q, want start hint", reply)
	}
}

func TestSMSMenuListsOptions(t *testing.T) {
	r, sender, _ := newTestResponder(t)
	from := "+15550002222"

	send(t, r, sender, from, "quote")
	reply := send(t, r, sender, from, "Acme Corp")
	for _, want := range []string{"1. 3 KW", "2. 5 KW", "3. 6 KW", "4. 10 KW", "Or reply OTHER"} {
		if !strings.Contains(reply, want) {
			t.Errorf("menu = %q, missing %q", reply, want)
		}
	}
}

func TestSMSInvalidOptionNumber(t *testing.T) {
	r, sender, _ := newTestResponder(t)
	from := "+15550003333"

	send(t, r, sender, from, "quote")
	send(t, r, sender, from, "Acme Corp")
	reply := send(t, r, sender, from, "9")
	if !strings.Contains(reply, "there is no option 9") {
		t.Errorf("reply = %q, want invalid option message", reply)
	}

	// The step did not advance; a valid selection still works.
	reply = send(t, r, sender, from, "1")
	if !strings.Contains(reply, "Enter Sanctioned Load:") {
		t.Errorf("reply = %q, want next prompt", reply)
	}
}

func TestSMSOtherSwitchesToFreeText(t *testing.T) {
	r, sender, _ := newTestResponder(t)
	from := "+15550004444"

	send(t, r, sender, from, "quote")
	send(t, r, sender, from, "Acme Corp")
	reply := send(t, r, sender, from, "other")
	if !strings.Contains(reply, "Enter Capacity:") {
		t.Fatalf("reply = %q, want free-text prompt", reply)
	}
	reply = send(t, r, sender, from, "7.5 KW")
	if !strings.Contains(reply, "Enter Sanctioned Load:") {
		t.Errorf("reply = %q, want next prompt", reply)
	}
}

func TestSMSCancel(t *testing.T) {
	r, sender, _ := newTestResponder(t)
	from := "+15550005555"

	send(t, r, sender, from, "quote")
	send(t, r, sender, from, "Acme Corp")
	reply := send(t, r, sender, from, "cancel")
	if !strings.Contains(reply, "Quotation cancelled") {
		t.Errorf("reply = %q, want cancellation message", reply)
	}
	reply = send(t, r, sender, from, "hello")
	if !strings.Contains(reply, "Text QUOTE to start") {
		t.Errorf("reply = %q, want start hint after cancel", reply)
	}
}

func TestSMSNoSessionHint(t *testing.T) {
	r, sender, _ := newTestResponder(t)
	reply := send(t, r, sender, "+15550006666", "hi there")
	if !strings.Contains(reply, "Text QUOTE to start a quotation.") {
		t.Errorf("reply = %q, want start hint", reply)
	}
}

func TestSMSDeliveryFailureKeepsSession(t *testing.T) {
	r, sender, objects := newTestResponder(t)
	from := "+15550007777"

	answers := []string{"quote", "Acme Corp", "2", "5 KW", "1", "1", "UTL Gamma Plus", "1", "1", "1", "9"}
	for _, a := range answers {
		send(t, r, sender, from, a)
	}

	objects.storeErr = fmt.Errorf("bucket unavailable")
	before := len(sender.Sent)
	err := r.HandleInbound(context.Background(), from, "350000")
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if len(sender.Sent) == before {
		t.Fatal("expected a failure reply")
	}
	reply := sender.Sent[len(sender.Sent)-1].Body
	if !strings.Contains(reply, "answers are saved") {
		t.Errorf("failure reply = %q, want retry hint", reply)
	}

	// The session survived, so any text retries the delivery.
	objects.storeErr = nil
	reply = send(t, r, sender, from, "retry")
	if !strings.Contains(reply, "Quotation ready!") {
		t.Errorf("retry reply = %q, want delivery message", reply)
	}
}
