package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"chiefgate/internal/chief"
	"chiefgate/internal/domain"
	"chiefgate/internal/infra/liteapi"
	"chiefgate/internal/infra/mailbox"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePayloads struct {
	payloads map[string]domain.LicencePayload
	order    []string
}

func newFakePayloads() *fakePayloads {
	return &fakePayloads{payloads: map[string]domain.LicencePayload{}}
}

func (f *fakePayloads) Create(_ context.Context, p domain.LicencePayload) (domain.LicencePayload, error) {
	if _, ok := f.payloads[p.Reference]; ok {
		return domain.LicencePayload{}, domain.ErrAlreadyExists
	}
	if p.ID == "" {
		p.ID = "payload-" + p.Reference
	}
	f.payloads[p.Reference] = p
	f.order = append(f.order, p.Reference)
	return p, nil
}

func (f *fakePayloads) GetByReference(_ context.Context, ref string) (*domain.LicencePayload, error) {
	p, ok := f.payloads[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (f *fakePayloads) FindUnprocessed(_ context.Context) ([]domain.LicencePayload, error) {
	var out []domain.LicencePayload
	for _, ref := range f.order {
		if p := f.payloads[ref]; !p.IsProcessed && !p.SkipProcess {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePayloads) PreviousPayload(_ context.Context, ref string) (*domain.LicencePayload, error) {
	p, ok := f.payloads[ref]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakePayloads) CountUnprocessedOlderThan(context.Context, time.Duration) (int64, error) {
	var n int64
	for _, p := range f.payloads {
		if !p.IsProcessed && !p.SkipProcess {
			n++
		}
	}
	return n, nil
}

type fakeMails struct {
	mails  map[int64]*domain.Mail
	nextID int64
	leases map[int64]string
}

func newFakeMails() *fakeMails {
	return &fakeMails{mails: map[int64]*domain.Mail{}, leases: map[int64]string{}}
}

func (f *fakeMails) open() *domain.Mail {
	for _, m := range f.mails {
		if m.Status != domain.MailReplySent {
			return m
		}
	}
	return nil
}

func (f *fakeMails) add(mail domain.Mail) *domain.Mail {
	f.nextID++
	mail.ID = f.nextID
	f.mails[mail.ID] = &mail
	return f.mails[mail.ID]
}

func (f *fakeMails) Get(_ context.Context, id int64) (*domain.Mail, error) {
	m, ok := f.mails[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (f *fakeMails) FindOpen(context.Context) (*domain.Mail, error) {
	if m := f.open(); m != nil {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeMails) CreateInSlot(_ context.Context, mail domain.Mail) (domain.Mail, error) {
	if f.open() != nil {
		return domain.Mail{}, domain.ErrSlotOccupied
	}
	return *f.add(mail), nil
}

func (f *fakeMails) AcquireLease(_ context.Context, id int64, worker string, _ time.Duration) error {
	if holder, ok := f.leases[id]; ok && holder != worker {
		return domain.ErrLeaseHeld
	}
	f.leases[id] = worker
	return nil
}

func (f *fakeMails) ReleaseLease(_ context.Context, id int64, worker string) error {
	if f.leases[id] == worker {
		delete(f.leases, id)
	}
	return nil
}

func (f *fakeMails) MarkSent(_ context.Context, id int64) error {
	now := time.Now().UTC()
	f.mails[id].Status = domain.MailReplyPending
	f.mails[id].SentAt = &now
	return nil
}

func (f *fakeMails) AttachResponse(_ context.Context, id int64, filename, data, subject string) error {
	m := f.mails[id]
	m.Status = domain.MailReplyReceived
	m.ResponseFilename = filename
	m.ResponseData = data
	m.ResponseSubject = subject
	return nil
}

func (f *fakeMails) MarkReplySent(_ context.Context, id int64) error {
	f.mails[id].Status = domain.MailReplySent
	return nil
}

func (f *fakeMails) CountStuckPending(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

// fakeOutbox mimics the transactional enqueue: slot check against the mail
// fake, sequential run numbers, build then send.
type fakeOutbox struct {
	mails    *fakeMails
	payloads *fakePayloads
	lastRun  int
	data     []domain.LicenceData
	sent     []sentMail
}

type sentMail struct {
	To       string
	Filename string
	Data     string
}

func (f *fakeOutbox) EnqueueLicenceData(_ context.Context, batch domain.OutboundBatch) (domain.Mail, domain.LicenceData, error) {
	if f.mails.open() != nil {
		return domain.Mail{}, domain.LicenceData{}, domain.ErrSlotOccupied
	}
	run := domain.NextRunNumber(f.lastRun)
	now := time.Now().UTC()
	filename, text, err := batch.Build(run, now)
	if err != nil {
		return domain.Mail{}, domain.LicenceData{}, err
	}
	if err := batch.Send(filename, text); err != nil {
		return domain.Mail{}, domain.LicenceData{}, err
	}
	f.lastRun = run
	mail := f.mails.add(domain.Mail{
		ExtractType: domain.ExtractLicenceData,
		Status:      domain.MailReplyPending,
		EDIFilename: filename,
		EDIData:     text,
		RawData:     batch.RawData,
		CreatedAt:   now,
		SentAt:      &now,
	})
	data := domain.LicenceData{
		ID:              int64(len(f.data) + 1),
		MailID:          mail.ID,
		HMRCRunNumber:   run,
		SourceRunNumber: batch.SourceRunNumber,
		Source:          batch.Source,
		PayloadIDs:      batch.PayloadIDs,
		LicenceRefs:     batch.LicenceRefs,
		CreatedAt:       now,
	}
	f.data = append(f.data, data)
	if f.payloads != nil {
		for _, id := range batch.PayloadIDs {
			for ref, p := range f.payloads.payloads {
				if p.ID == id {
					p.IsProcessed = true
					f.payloads.payloads[ref] = p
				}
			}
		}
	}
	return *mail, data, nil
}

type fakeLicenceData struct {
	outbox *fakeOutbox
}

func (f *fakeLicenceData) FindByRunNumber(_ context.Context, run int) (*domain.LicenceData, error) {
	for i := range f.outbox.data {
		if f.outbox.data[i].HMRCRunNumber == run {
			return &f.outbox.data[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLicenceData) FindByMailID(_ context.Context, mailID int64) (*domain.LicenceData, error) {
	for i := range f.outbox.data {
		if f.outbox.data[i].MailID == mailID {
			return &f.outbox.data[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeUsageData struct {
	rows   map[int64]*domain.UsageData
	nextID int64
}

func newFakeUsageData() *fakeUsageData {
	return &fakeUsageData{rows: map[int64]*domain.UsageData{}}
}

func (f *fakeUsageData) Create(_ context.Context, data domain.UsageData) (domain.UsageData, error) {
	f.nextID++
	data.ID = f.nextID
	f.rows[data.ID] = &data
	return data, nil
}

func (f *fakeUsageData) Get(_ context.Context, id int64) (*domain.UsageData, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeUsageData) FindByMailID(_ context.Context, mailID int64) (*domain.UsageData, error) {
	for _, row := range f.rows {
		if row.MailID == mailID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsageData) Update(_ context.Context, data domain.UsageData) error {
	f.rows[data.ID] = &data
	return nil
}

func (f *fakeUsageData) PendingLiteDelivery(context.Context) ([]domain.UsageData, error) {
	var out []domain.UsageData
	for _, row := range f.rows {
		if row.HasLiteData && row.LiteSentAt == nil {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeUsageData) RecordLiteDelivery(_ context.Context, id int64, response string, accepted, rejected []string) error {
	now := time.Now().UTC()
	row := f.rows[id]
	row.LiteResponse = response
	row.LiteAcceptedLicences = accepted
	row.LiteRejectedLicences = rejected
	row.LiteSentAt = &now
	return nil
}

type fakeMappings struct {
	licences     map[string]string
	goods        map[string]string
	transactions []domain.TransactionMapping
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{licences: map[string]string{}, goods: map[string]string{}}
}

func (f *fakeMappings) LicenceID(ref string) (string, bool) {
	id, ok := f.licences[ref]
	return id, ok
}

func (f *fakeMappings) GoodID(ref string, line int) (string, bool) {
	id, ok := f.goods[ref]
	_ = line
	return id, ok
}

func (f *fakeMappings) UpsertLicenceIDMapping(_ context.Context, m domain.LicenceIDMapping) error {
	f.licences[m.Reference] = m.LiteID
	return nil
}

func (f *fakeMappings) UpsertGoodIDMapping(_ context.Context, m domain.GoodIDMapping) error {
	f.goods[m.Reference] = m.LiteID
	return nil
}

func (f *fakeMappings) UpsertTransactionMapping(_ context.Context, m domain.TransactionMapping) error {
	f.transactions = append(f.transactions, m)
	return nil
}

type fakeSender struct {
	sent          []sentMail
	notifications []string
	fail          error
}

func (f *fakeSender) SendPayload(_ context.Context, to, filename, data string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentMail{To: to, Filename: filename, Data: data})
	return nil
}

func (f *fakeSender) SendNotification(_ context.Context, to []string, subject, body string) error {
	f.notifications = append(f.notifications, subject+"\n"+body)
	return nil
}

type fakeLite struct {
	delivered []string
	reply     *liteapi.Delivery
	fail      error
}

func (f *fakeLite) SendUsage(_ context.Context, usageDataID string, _ *chief.LiteUsagePayload) (*liteapi.Delivery, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.delivered = append(f.delivered, usageDataID)
	return f.reply, nil
}

type fakeReadStatus struct {
	statuses map[string]domain.ReadStatus
}

func newFakeReadStatus() *fakeReadStatus {
	return &fakeReadStatus{statuses: map[string]domain.ReadStatus{}}
}

func (f *fakeReadStatus) Status(_ context.Context, box, id string) (domain.ReadStatus, error) {
	return f.statuses[box+"/"+id], nil
}

func (f *fakeReadStatus) Mark(_ context.Context, box, id string, status domain.ReadStatus) error {
	f.statuses[box+"/"+id] = status
	return nil
}

type fakeInbox struct {
	name      string
	whitelist map[string]bool
	messages  []fakeMessage
}

type fakeMessage struct {
	Header mailbox.Header
	Raw    []byte
}

func (f *fakeInbox) Mailbox() string { return f.name }

func (f *fakeInbox) Whitelisted(sender string) bool { return f.whitelist[sender] }

func (f *fakeInbox) Connect() (InboxSession, error) {
	return &fakeSession{inbox: f}, nil
}

type fakeSession struct {
	inbox *fakeInbox
}

func (s *fakeSession) List() ([]int, error) {
	ids := make([]int, len(s.inbox.messages))
	for i := range ids {
		ids[i] = i + 1
	}
	return ids, nil
}

func (s *fakeSession) Peek(id int) (mailbox.Header, error) {
	return s.inbox.messages[id-1].Header, nil
}

func (s *fakeSession) Retrieve(id int) ([]byte, error) {
	return s.inbox.messages[id-1].Raw, nil
}

func (s *fakeSession) Quit() error { return nil }
