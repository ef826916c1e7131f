package printing

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/constants"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/internal/mailparse"
	apperrors "github.com/adaoss/Mail2printer/pkg/errors"
)

type fakeSubmission struct {
	printer  string
	filePath string
	title    string
	opts     JobOptions
	data     []byte
	readErr  error
}

type fakeSpooler struct {
	mu             sync.Mutex
	submissions    []fakeSubmission
	jobIDs         []int
	submitErrs     []error
	jobStates      map[int][]JobState
	jobStateErr    error
	printers       []string
	printersErr    error
	defaultPrinter string
	canceled       []int
}

func (f *fakeSpooler) Submit(ctx context.Context, printer, filePath, title string, opts JobOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := len(f.submissions)
	// Capture file content at submission time to prove the temp file is
	// still alive when the spooler reads it.
	data, readErr := os.ReadFile(filePath)
	f.submissions = append(f.submissions, fakeSubmission{
		printer:  printer,
		filePath: filePath,
		title:    title,
		opts:     opts,
		data:     data,
		readErr:  readErr,
	})

	if call < len(f.submitErrs) && f.submitErrs[call] != nil {
		return 0, f.submitErrs[call]
	}
	if call < len(f.jobIDs) {
		return f.jobIDs[call], nil
	}
	return 0, nil
}

func (f *fakeSpooler) JobState(ctx context.Context, jobID int) (JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.jobStateErr != nil {
		return "", f.jobStateErr
	}
	seq := f.jobStates[jobID]
	if len(seq) == 0 {
		return JobStateCompleted, nil
	}
	state := seq[0]
	if len(seq) > 1 {
		f.jobStates[jobID] = seq[1:]
	}
	return state, nil
}

func (f *fakeSpooler) Jobs(ctx context.Context) (map[int]JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	states := make(map[int]JobState, len(f.jobStates))
	for id, seq := range f.jobStates {
		if len(seq) > 0 {
			states[id] = seq[0]
		}
	}
	return states, nil
}

func (f *fakeSpooler) Cancel(ctx context.Context, jobID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, jobID)
	return nil
}

func (f *fakeSpooler) Printers(ctx context.Context) ([]string, error) {
	return f.printers, f.printersErr
}

func (f *fakeSpooler) DefaultPrinter(ctx context.Context) (string, error) {
	return f.defaultPrinter, nil
}

func (f *fakeSpooler) Ping(ctx context.Context) error { return nil }

func (f *fakeSpooler) submissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

type fakeRenderer struct {
	pdf       []byte
	err       error
	calls     int
	lastHTML  string
	lastTitle string
}

func (f *fakeRenderer) Render(html, title string) ([]byte, error) {
	f.calls++
	f.lastHTML = html
	f.lastTitle = title
	if f.err != nil {
		return nil, f.err
	}
	return f.pdf, nil
}

type fakeFallback struct {
	err   error
	calls []fakeSubmission
}

func (f *fakeFallback) Submit(ctx context.Context, printer, filePath, title string, opts JobOptions) error {
	data, readErr := os.ReadFile(filePath)
	f.calls = append(f.calls, fakeSubmission{
		printer:  printer,
		filePath: filePath,
		title:    title,
		opts:     opts,
		data:     data,
		readErr:  readErr,
	})
	return f.err
}

func testPrintingConfig() config.PrintingConfig {
	return config.PrintingConfig{
		PrinterName:         "TestPrinter",
		PrintAttachments:    true,
		PrintBody:           true,
		PrintHTML:           true,
		MaxPagesPerDocument: 50,
		Copies:              1,
		Options: config.PrintOptionsConfig{
			PaperSize:   "a4",
			Orientation: "portrait",
			Quality:     "normal",
			Duplex:      "one-sided",
			ColorMode:   "monochrome",
		},
		Wait: config.WaitConfig{
			BaseSeconds:          1,
			PerAttachmentSeconds: 1,
			MaxSeconds:           1,
			JobTimeoutSeconds:    3,
		},
	}
}

func newTestOrchestrator(cfg config.PrintingConfig, spooler *fakeSpooler, fallback *fakeFallback, renderer *fakeRenderer) *Orchestrator {
	if spooler.jobStates == nil {
		spooler.jobStates = map[int][]JobState{}
	}
	return NewOrchestrator(cfg, spooler, fallback, renderer, NewJobRegistry(100), logger.NopLogger())
}

func pngAttachment(t *testing.T, name string) mailparse.Attachment {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 12))
	for x := 0; x < 12; x++ {
		for y := 0; y < 12; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return mailparse.Attachment{
		Filename:    name,
		ContentType: "image/png",
		Size:        int64(buf.Len()),
		Data:        buf.Bytes(),
	}
}

func TestPrintMessageAttachmentsSuppressBody(t *testing.T) {
	spooler := &fakeSpooler{}
	renderer := &fakeRenderer{pdf: []byte("%PDF-1.4 fake")}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, renderer)

	msg := &mailparse.EmailMessage{
		Subject:  "Invoice",
		TextBody: "see attached",
		HTMLBody: "<p>see attached</p>",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 payload"), Size: 16},
		},
	}

	outcome := orch.PrintMessage(context.Background(), msg)

	assert.Equal(t, OutcomePrinted, outcome)
	assert.Equal(t, 0, renderer.calls, "body must not be rendered when attachments print")
	require.Equal(t, 1, spooler.submissionCount())

	sub := spooler.submissions[0]
	assert.Equal(t, "TestPrinter", sub.printer)
	assert.Equal(t, "invoice.pdf", sub.title)
	assert.Equal(t, "01-invoice.pdf", filepath.Base(sub.filePath))
	assert.Equal(t, constants.OrientationPortrait, sub.opts.Orientation)
	require.NoError(t, sub.readErr)
	assert.Equal(t, []byte("%PDF-1.4 payload"), sub.data)

	// The staging directory is gone once the message is finished.
	_, err := os.Stat(sub.filePath)
	assert.True(t, os.IsNotExist(err))
}

func TestPrintMessageBodyPrefersHTML(t *testing.T) {
	spooler := &fakeSpooler{}
	renderer := &fakeRenderer{pdf: []byte("%PDF-1.4 rendered")}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, renderer)

	msg := &mailparse.EmailMessage{
		Subject:   "Hello",
		Sender:    "alice@example.com",
		Recipient: "printer@example.com",
		Date:      "Fri, 14 Mar 2025 12:00:00 +0000",
		TextBody:  "plain version",
		HTMLBody:  "<p>rich version</p>",
	}

	outcome := orch.PrintMessage(context.Background(), msg)

	assert.Equal(t, OutcomePrinted, outcome)
	assert.Equal(t, 1, renderer.calls)
	assert.Equal(t, "Email: Hello", renderer.lastTitle)
	assert.Contains(t, renderer.lastHTML, "alice@example.com")
	assert.Contains(t, renderer.lastHTML, "<p>rich version</p>")

	require.Equal(t, 1, spooler.submissionCount())
	sub := spooler.submissions[0]
	assert.Equal(t, "body.pdf", filepath.Base(sub.filePath))
	assert.Equal(t, constants.OrientationPortrait, sub.opts.Orientation)
	assert.Equal(t, []byte("%PDF-1.4 rendered"), sub.data)
}

func TestPrintMessageBodyFallsBackToTextOnRenderFailure(t *testing.T) {
	spooler := &fakeSpooler{}
	renderer := &fakeRenderer{err: errors.New("wkhtmltopdf not found")}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, renderer)

	msg := &mailparse.EmailMessage{
		Subject:  "Hello",
		Sender:   "alice@example.com",
		TextBody: "plain version",
		HTMLBody: "<p>rich version</p>",
	}

	outcome := orch.PrintMessage(context.Background(), msg)

	assert.Equal(t, OutcomePrinted, outcome)
	require.Equal(t, 1, spooler.submissionCount())

	sub := spooler.submissions[0]
	assert.Equal(t, "body.txt", filepath.Base(sub.filePath))
	text := string(sub.data)
	assert.Contains(t, text, "From: alice@example.com")
	assert.Contains(t, text, "Subject: Hello")
	assert.Contains(t, text, "plain version")
}

func TestPrintMessageRenderFailureWithoutTextFails(t *testing.T) {
	spooler := &fakeSpooler{}
	renderer := &fakeRenderer{err: errors.New("render exploded")}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, renderer)

	msg := &mailparse.EmailMessage{
		Subject:  "Hello",
		HTMLBody: "<p>rich only</p>",
	}

	assert.Equal(t, OutcomeFailed, orch.PrintMessage(context.Background(), msg))
	assert.Equal(t, 0, spooler.submissionCount())
}

func TestPrintMessageNothingPrintable(t *testing.T) {
	cfg := testPrintingConfig()
	cfg.PrintBody = false
	cfg.PrintHTML = false
	spooler := &fakeSpooler{}
	orch := newTestOrchestrator(cfg, spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{Subject: "Hello", TextBody: "body"}

	assert.Equal(t, OutcomeSkipped, orch.PrintMessage(context.Background(), msg))
	assert.Equal(t, 0, spooler.submissionCount())
}

func TestPrintMessagePageCapRejects(t *testing.T) {
	cfg := testPrintingConfig()
	cfg.MaxPagesPerDocument = 2
	spooler := &fakeSpooler{}
	orch := newTestOrchestrator(cfg, spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Huge report",
		Attachments: []mailparse.Attachment{
			{
				Filename:    "report.txt",
				ContentType: "text/plain",
				Data:        []byte(strings.Repeat("line\n", 200)),
				Size:        1000,
			},
		},
	}

	assert.Equal(t, OutcomeSkipped, orch.PrintMessage(context.Background(), msg))
	assert.Equal(t, 0, spooler.submissionCount())
}

func TestPrintMessageUnsupportedImageRejected(t *testing.T) {
	spooler := &fakeSpooler{}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Animation",
		Attachments: []mailparse.Attachment{
			{Filename: "clip.gif", ContentType: "image/gif", Data: []byte("GIF89a"), Size: 6},
		},
	}

	assert.Equal(t, OutcomeSkipped, orch.PrintMessage(context.Background(), msg))
	assert.Equal(t, 0, spooler.submissionCount())
}

func TestPrintMessageImageConvertedToPDF(t *testing.T) {
	spooler := &fakeSpooler{}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject:     "Photo",
		Attachments: []mailparse.Attachment{pngAttachment(t, "photo.png")},
	}

	outcome := orch.PrintMessage(context.Background(), msg)

	assert.Equal(t, OutcomePrinted, outcome)
	require.Equal(t, 1, spooler.submissionCount())

	sub := spooler.submissions[0]
	assert.Equal(t, "01-photo.png.pdf", filepath.Base(sub.filePath))
	assert.True(t, bytes.HasPrefix(sub.data, []byte("%PDF")))
	assert.Equal(t, "A4", sub.opts.Media)
	assert.Equal(t, constants.OrientationPortrait, sub.opts.Orientation)
}

func TestPrintMessageSpoolerFailureFallsBackToLP(t *testing.T) {
	spooler := &fakeSpooler{submitErrs: []error{errors.New("connection refused")}}
	fallback := &fakeFallback{}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, fallback, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Invoice",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 payload"), Size: 16},
		},
	}

	outcome := orch.PrintMessage(context.Background(), msg)

	assert.Equal(t, OutcomePrinted, outcome)
	require.Len(t, fallback.calls, 1)
	assert.Equal(t, "TestPrinter", fallback.calls[0].printer)
	assert.Equal(t, []byte("%PDF-1.4 payload"), fallback.calls[0].data)
}

func TestPrintMessageBothPathsFail(t *testing.T) {
	spooler := &fakeSpooler{submitErrs: []error{errors.New("connection refused")}}
	fallback := &fakeFallback{err: errors.New("lp: command not found")}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, fallback, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Invoice",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 payload"), Size: 16},
		},
	}

	assert.Equal(t, OutcomeFailed, orch.PrintMessage(context.Background(), msg))
}

func TestPrintMessagePollsJobToCompletion(t *testing.T) {
	spooler := &fakeSpooler{
		jobIDs:    []int{42},
		jobStates: map[int][]JobState{42: {JobStateProcessing, JobStateCompleted}},
	}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Invoice",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 payload"), Size: 16},
		},
	}

	assert.Equal(t, OutcomePrinted, orch.PrintMessage(context.Background(), msg))

	jobs := orch.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, 42, jobs[0].ID)
	assert.Equal(t, JobStateCompleted, jobs[0].State)
	assert.Equal(t, "invoice.pdf", jobs[0].Title)
	assert.Equal(t, "TestPrinter", jobs[0].Printer)
}

func TestPrintMessageJobGoneCountsAsCompleted(t *testing.T) {
	spooler := &fakeSpooler{
		jobIDs:      []int{17},
		jobStateErr: errors.New("job not found"),
	}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Invoice",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 payload"), Size: 16},
		},
	}

	assert.Equal(t, OutcomePrinted, orch.PrintMessage(context.Background(), msg))

	job, ok := orch.Job(17)
	require.True(t, ok)
	assert.Equal(t, JobStateCompleted, job.State)
}

func TestPrintBatchIsolatesFailures(t *testing.T) {
	spooler := &fakeSpooler{
		submitErrs: []error{nil, errors.New("spooler down"), nil},
	}
	fallback := &fakeFallback{err: errors.New("lp missing")}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, fallback, &fakeRenderer{})

	newMsg := func(subject string) *mailparse.EmailMessage {
		return &mailparse.EmailMessage{
			Subject: subject,
			Attachments: []mailparse.Attachment{
				{Filename: subject + ".pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8},
			},
		}
	}

	result := orch.PrintBatch(context.Background(), []*mailparse.EmailMessage{
		newMsg("first"), newMsg("second"), newMsg("third"),
	})

	assert.Equal(t, 2, result.Printed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.FailedFiles)
	assert.Equal(t, 3, spooler.submissionCount())
}

func TestPrintBatchCountsFailedFileDespiteSiblingSuccess(t *testing.T) {
	// First attachment is refused by the spooler and by lp; the second
	// submits fine. The email counts as printed, the refused file must
	// still surface in the failed-files tally.
	spooler := &fakeSpooler{
		submitErrs: []error{errors.New("spooler down"), nil},
	}
	fallback := &fakeFallback{err: errors.New("lp missing")}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, fallback, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Mostly fine",
		Attachments: []mailparse.Attachment{
			{Filename: "broken.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8},
			{Filename: "fine.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8},
		},
	}

	result := orch.PrintBatch(context.Background(), []*mailparse.EmailMessage{msg})

	assert.Equal(t, 1, result.Printed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.FailedFiles)
	require.Len(t, fallback.calls, 1)
	assert.Equal(t, "01-broken.pdf", filepath.Base(fallback.calls[0].filePath))
}

func TestResolvePrinterPrefersSpoolerDefault(t *testing.T) {
	cfg := testPrintingConfig()
	cfg.PrinterName = "default"
	spooler := &fakeSpooler{
		printers:       []string{"Basement_Inkjet", "Office_Laser"},
		defaultPrinter: "Office_Laser",
	}
	orch := newTestOrchestrator(cfg, spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Invoice",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8},
		},
	}

	require.Equal(t, OutcomePrinted, orch.PrintMessage(context.Background(), msg))
	require.Equal(t, 1, spooler.submissionCount())
	assert.Equal(t, "Office_Laser", spooler.submissions[0].printer, "the literal name default defers to the spooler's default queue")
	assert.Equal(t, "Office_Laser", orch.ActivePrinter())
}

func TestResolvePrinterDiscoversFirst(t *testing.T) {
	cfg := testPrintingConfig()
	cfg.PrinterName = ""
	spooler := &fakeSpooler{printers: []string{"Office_Laser", "Basement_Inkjet"}}
	orch := newTestOrchestrator(cfg, spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Invoice",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8},
		},
	}

	require.Equal(t, OutcomePrinted, orch.PrintMessage(context.Background(), msg))
	require.Equal(t, 1, spooler.submissionCount())
	assert.Equal(t, "Office_Laser", spooler.submissions[0].printer)
	assert.Equal(t, "Office_Laser", orch.ActivePrinter())
}

func TestResolvePrinterEmptyWhenDiscoveryFails(t *testing.T) {
	cfg := testPrintingConfig()
	cfg.PrinterName = ""
	spooler := &fakeSpooler{printersErr: errors.New("no cups")}
	orch := newTestOrchestrator(cfg, spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Invoice",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8},
		},
	}

	require.Equal(t, OutcomePrinted, orch.PrintMessage(context.Background(), msg))
	assert.Equal(t, "", spooler.submissions[0].printer)
}

func TestCancelJob(t *testing.T) {
	spooler := &fakeSpooler{
		jobIDs:    []int{9},
		jobStates: map[int][]JobState{9: {JobStateCompleted}},
	}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Invoice",
		Attachments: []mailparse.Attachment{
			{Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8},
		},
	}
	require.Equal(t, OutcomePrinted, orch.PrintMessage(context.Background(), msg))

	require.NoError(t, orch.CancelJob(context.Background(), 9))
	assert.Equal(t, []int{9}, spooler.canceled)

	job, ok := orch.Job(9)
	require.True(t, ok)
	assert.Equal(t, JobStateCanceled, job.State)

	err := orch.CancelJob(context.Background(), 12345)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPrintMessageMixedAttachments(t *testing.T) {
	spooler := &fakeSpooler{}
	orch := newTestOrchestrator(testPrintingConfig(), spooler, &fakeFallback{}, &fakeRenderer{})

	msg := &mailparse.EmailMessage{
		Subject: "Mixed",
		Attachments: []mailparse.Attachment{
			{Filename: "clip.gif", ContentType: "image/gif", Data: []byte("GIF89a"), Size: 6},
			{Filename: "doc.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8},
		},
	}

	// One rejection plus one success still counts as printed.
	assert.Equal(t, OutcomePrinted, orch.PrintMessage(context.Background(), msg))
	require.Equal(t, 1, spooler.submissionCount())
	assert.Equal(t, "02-doc.pdf", filepath.Base(spooler.submissions[0].filePath))
}
