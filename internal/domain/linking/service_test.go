package linking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// -- Mock repositories --

type mockPartyRepo struct {
	parties map[uuid.UUID]*Party
	// forceConflicts makes the next N SetInviteCode calls fail as if the
	// global uniqueness constraint fired.
	forceConflicts int
}

func newMockPartyRepo() *mockPartyRepo {
	return &mockPartyRepo{parties: make(map[uuid.UUID]*Party)}
}

func (m *mockPartyRepo) add(role, subject, name string, code string) *Party {
	p := &Party{ID: uuid.New(), Subject: subject, Role: role, DisplayName: name}
	if code != "" {
		c := code
		p.InviteCode = &c
	}
	m.parties[p.ID] = p
	return p
}

func (m *mockPartyRepo) GetBySubject(_ context.Context, subject string) (*Party, error) {
	for _, p := range m.parties {
		if p.Subject == subject {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPartyRepo) GetByID(_ context.Context, id uuid.UUID) (*Party, error) {
	p, ok := m.parties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPartyRepo) GetByInviteCode(_ context.Context, code string) (*Party, error) {
	for _, p := range m.parties {
		if p.InviteCode != nil && *p.InviteCode == code {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPartyRepo) SetInviteCode(_ context.Context, id uuid.UUID, code string) error {
	if m.forceConflicts > 0 {
		m.forceConflicts--
		return ErrConflict
	}
	for _, p := range m.parties {
		if p.InviteCode != nil && *p.InviteCode == code {
			return ErrConflict
		}
	}
	p, ok := m.parties[id]
	if !ok || p.InviteCode != nil {
		return ErrNotFound
	}
	p.InviteCode = &code
	return nil
}

type pairKey struct{ caregiver, patient uuid.UUID }

type mockDirectoryRepo struct {
	allowed map[uuid.UUID][]*AllowedCaregiverEntry
	links   map[pairKey]*CaregiverPatientLink
}

func newMockDirectoryRepo() *mockDirectoryRepo {
	return &mockDirectoryRepo{
		allowed: make(map[uuid.UUID][]*AllowedCaregiverEntry),
		links:   make(map[pairKey]*CaregiverPatientLink),
	}
}

func (m *mockDirectoryRepo) AddAllowedCaregiver(_ context.Context, e *AllowedCaregiverEntry) error {
	for _, existing := range m.allowed[e.PatientID] {
		if strings.EqualFold(existing.CaregiverCode, e.CaregiverCode) {
			return ErrConflict
		}
	}
	e.ID = uuid.New()
	m.allowed[e.PatientID] = append(m.allowed[e.PatientID], e)
	return nil
}

func (m *mockDirectoryRepo) ListAllowedCaregivers(_ context.Context, patientID uuid.UUID) ([]*AllowedCaregiverEntry, error) {
	return m.allowed[patientID], nil
}

func (m *mockDirectoryRepo) RemoveAllowedCaregiver(_ context.Context, patientID, entryID uuid.UUID) error {
	entries := m.allowed[patientID]
	for i, e := range entries {
		if e.ID == entryID {
			m.allowed[patientID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockDirectoryRepo) FindAllowedCaregiver(_ context.Context, patientID uuid.UUID, caregiverCode string) (*AllowedCaregiverEntry, error) {
	for _, e := range m.allowed[patientID] {
		if strings.EqualFold(e.CaregiverCode, caregiverCode) {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDirectoryRepo) GetLink(_ context.Context, caregiverID, patientID uuid.UUID) (*CaregiverPatientLink, error) {
	l, ok := m.links[pairKey{caregiverID, patientID}]
	if !ok {
		return nil, ErrNotFound
	}
	return l, nil
}

// UpsertLink mirrors the SQL merge: flags OR together, status recomputes,
// inactive stays inactive.
func (m *mockDirectoryRepo) UpsertLink(_ context.Context, link *CaregiverPatientLink) error {
	key := pairKey{link.CaregiverID, link.PatientID}
	existing, ok := m.links[key]
	if !ok {
		if link.ID == uuid.Nil {
			link.ID = uuid.New()
		}
		stored := *link
		m.links[key] = &stored
		return nil
	}
	existing.PatientApproved = existing.PatientApproved || link.PatientApproved
	existing.CaregiverApproved = existing.CaregiverApproved || link.CaregiverApproved
	switch {
	case existing.Status == StatusInactive:
	case existing.PatientApproved && existing.CaregiverApproved:
		existing.Status = StatusActive
	default:
		existing.Status = StatusPending
	}
	*link = *existing
	return nil
}

func (m *mockDirectoryRepo) SetLinkStatus(_ context.Context, caregiverID, patientID uuid.UUID, status LinkStatus) error {
	l, ok := m.links[pairKey{caregiverID, patientID}]
	if !ok {
		return ErrNotFound
	}
	l.Status = status
	return nil
}

func (m *mockDirectoryRepo) listActive(pick func(*CaregiverPatientLink) bool) []*CaregiverPatientLink {
	var items []*CaregiverPatientLink
	for _, l := range m.links {
		if l.Status == StatusActive && pick(l) {
			items = append(items, l)
		}
	}
	return items
}

func (m *mockDirectoryRepo) ListActiveByCaregiver(_ context.Context, caregiverID uuid.UUID) ([]*CaregiverPatientLink, error) {
	return m.listActive(func(l *CaregiverPatientLink) bool { return l.CaregiverID == caregiverID }), nil
}

func (m *mockDirectoryRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*CaregiverPatientLink, error) {
	return m.listActive(func(l *CaregiverPatientLink) bool { return l.PatientID == patientID }), nil
}

func newTestService() (*Service, *mockPartyRepo, *mockDirectoryRepo) {
	parties := newMockPartyRepo()
	dir := newMockDirectoryRepo()
	return NewService(parties, dir), parties, dir
}

// -- Code generation --

func TestGenerateCaregiverCode_Idempotent(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RoleCaregiver, "tom", "Tom Baker", "")

	first, err := svc.GenerateCaregiverCode(context.Background(), "tom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.GenerateCaregiverCode(context.Background(), "tom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected identical codes, got %q and %q", first, second)
	}
	if !strings.HasPrefix(first, "tom-") {
		t.Errorf("expected name fragment prefix, got %q", first)
	}
}

func TestGenerateCaregiverCode_ExistingCodeReturned(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RoleCaregiver, "tom", "Tom Baker", "tom-caregiver-99")

	code, err := svc.GenerateCaregiverCode(context.Background(), "tom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "tom-caregiver-99" {
		t.Errorf("expected existing code, got %q", code)
	}
}

func TestGenerateCaregiverCode_NoProfile(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.GenerateCaregiverCode(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateCaregiverCode_CollisionRetried(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RoleCaregiver, "tom", "Tom Baker", "")
	parties.forceConflicts = 2

	code, err := svc.GenerateCaregiverCode(context.Background(), "tom")
	if err != nil {
		t.Fatalf("expected retries to absorb collisions, got %v", err)
	}
	if code == "" {
		t.Error("expected a code")
	}
}

func TestGenerateCaregiverCode_CollisionExhausted(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RoleCaregiver, "tom", "Tom Baker", "")
	parties.forceConflicts = 100

	_, err := svc.GenerateCaregiverCode(context.Background(), "tom")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict after exhausted retries, got %v", err)
	}
}

// -- Patient lookup --

func TestFindPatientByInviteCode_Success(t *testing.T) {
	svc, parties, _ := newTestService()
	sarah := parties.add(RolePatient, "sarah", "Sarah Connor", "sarah-4821")

	sum, err := svc.FindPatientByInviteCode(context.Background(), "sarah-4821")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.ID != sarah.ID {
		t.Error("resolved wrong patient")
	}
	if sum.Initials != "SC" {
		t.Errorf("expected initials SC, got %q", sum.Initials)
	}
}

func TestFindPatientByInviteCode_CaseAndWhitespace(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RolePatient, "sarah", "Sarah Connor", "sarah-4821")

	if _, err := svc.FindPatientByInviteCode(context.Background(), "  SARAH-4821 \n"); err != nil {
		t.Fatalf("expected normalized lookup to succeed, got %v", err)
	}
}

func TestFindPatientByInviteCode_ShareURL(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RolePatient, "sarah", "Sarah Connor", "sarah-4821")

	if _, err := svc.FindPatientByInviteCode(context.Background(), "https://app.example.com/invite/sarah-4821"); err != nil {
		t.Fatalf("expected URL form to resolve, got %v", err)
	}
}

func TestFindPatientByInviteCode_NotFoundNoWrites(t *testing.T) {
	svc, _, dir := newTestService()

	_, err := svc.FindPatientByInviteCode(context.Background(), "nobody-0000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(dir.links) != 0 || len(dir.allowed) != 0 {
		t.Error("read-only lookup must not touch the linking directory")
	}
}

func TestFindPatientByInviteCode_CaregiverCodeRejected(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RoleCaregiver, "tom", "Tom Baker", "tom-caregiver-99")

	_, err := svc.FindPatientByInviteCode(context.Background(), "tom-caregiver-99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a caregiver code, got %v", err)
	}
}

func TestFindPatientByInviteCode_EmptyInput(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.FindPatientByInviteCode(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGeneratedCodeRoundTrip(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RolePatient, "sarah", "Sarah Connor", "")

	code, err := svc.GenerateCaregiverCode(context.Background(), "sarah")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.FindPatientByInviteCode(context.Background(), code); err != nil {
		t.Errorf("generated code must resolve, got %v", err)
	}
	if _, err := svc.FindPatientByInviteCode(context.Background(), ShareURL("https://app.example.com", code)); err != nil {
		t.Errorf("share URL of generated code must resolve, got %v", err)
	}
}

// -- Two-way linking --

func seedSarahAndTom(parties *mockPartyRepo) (sarah, tom *Party) {
	sarah = parties.add(RolePatient, "sarah", "Sarah Connor", "sarah-4821")
	tom = parties.add(RoleCaregiver, "tom", "Tom Baker", "tom-caregiver-99")
	return sarah, tom
}

func TestLinkTwoWay_NotApproved(t *testing.T) {
	svc, parties, dir := newTestService()
	seedSarahAndTom(parties)

	// Sarah never allow-listed Tom's code.
	_, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(dir.links) != 0 {
		t.Error("failed precondition must leave the directory unchanged")
	}
}

func TestLinkTwoWay_Approved(t *testing.T) {
	svc, parties, _ := newTestService()
	sarah, tom := seedSarahAndTom(parties)

	if _, err := svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom"); err != nil {
		t.Fatalf("allow-list setup failed: %v", err)
	}

	link, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Status != StatusActive {
		t.Errorf("expected active link, got %q", link.Status)
	}
	if !link.PatientApproved || !link.CaregiverApproved {
		t.Error("both approval flags must be set")
	}
	if link.CaregiverID != tom.ID || link.PatientID != sarah.ID {
		t.Error("link endpoints wrong")
	}

	patients, err := svc.GetLinkedPatients(context.Background(), "tom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patients) != 1 || patients[0].ID != sarah.ID {
		t.Errorf("expected [Sarah], got %v", patients)
	}
}

func TestLinkTwoWay_ShareURLForm(t *testing.T) {
	svc, parties, _ := newTestService()
	seedSarahAndTom(parties)
	svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom")

	link, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "https://app.example.com/invite/sarah-4821")
	if err != nil {
		t.Fatalf("expected URL form to link, got %v", err)
	}
	if link.Status != StatusActive {
		t.Errorf("expected active link, got %q", link.Status)
	}
}

func TestLinkTwoWay_AllowListCaseInsensitive(t *testing.T) {
	svc, parties, _ := newTestService()
	seedSarahAndTom(parties)
	svc.AddAllowedCaregiver(context.Background(), "sarah", "TOM-CAREGIVER-99", "Tom")

	if _, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821"); err != nil {
		t.Fatalf("allow-list match must be case-insensitive, got %v", err)
	}
}

func TestLinkTwoWay_Idempotent(t *testing.T) {
	svc, parties, dir := newTestService()
	seedSarahAndTom(parties)
	svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom")

	first, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821")
	if err != nil {
		t.Fatalf("second call must succeed, got %v", err)
	}
	if len(dir.links) != 1 {
		t.Errorf("expected exactly one link row, got %d", len(dir.links))
	}
	if second.Status != StatusActive {
		t.Errorf("re-invocation must not regress status, got %q", second.Status)
	}
	if first.ID != second.ID {
		t.Error("existing row must be updated in place, not replaced")
	}
}

func TestLinkTwoWay_PendingRowPromoted(t *testing.T) {
	svc, parties, dir := newTestService()
	sarah, tom := seedSarahAndTom(parties)
	svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom")

	// A pending row already exists for the pair; it must be updated in
	// place regardless of which approval event arrived first.
	dir.links[pairKey{tom.ID, sarah.ID}] = &CaregiverPatientLink{
		ID: uuid.New(), CaregiverID: tom.ID, PatientID: sarah.ID,
		PatientApproved: true, Status: StatusPending,
	}

	link, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Status != StatusActive {
		t.Errorf("expected promotion to active, got %q", link.Status)
	}
	if len(dir.links) != 1 {
		t.Errorf("expected one row, got %d", len(dir.links))
	}
}

func TestLinkTwoWay_InvalidCode(t *testing.T) {
	svc, parties, _ := newTestService()
	seedSarahAndTom(parties)

	_, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "nope-0000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLinkTwoWay_PatientCallerRejected(t *testing.T) {
	svc, parties, _ := newTestService()
	seedSarahAndTom(parties)

	_, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "sarah", "sarah-4821")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a patient caller, got %v", err)
	}
}

func TestLinkTwoWay_CallerWithoutOwnCode(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RolePatient, "sarah", "Sarah Connor", "sarah-4821")
	parties.add(RoleCaregiver, "tom", "Tom Baker", "")

	_, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized when caller has no code, got %v", err)
	}
}

func TestLinkTwoWay_RevokedPairStaysInactive(t *testing.T) {
	svc, parties, dir := newTestService()
	sarah, tom := seedSarahAndTom(parties)
	svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom")

	dir.links[pairKey{tom.ID, sarah.ID}] = &CaregiverPatientLink{
		ID: uuid.New(), CaregiverID: tom.ID, PatientID: sarah.ID,
		PatientApproved: true, CaregiverApproved: true, Status: StatusInactive,
	}

	_, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for a revoked pair, got %v", err)
	}
	if dir.links[pairKey{tom.ID, sarah.ID}].Status != StatusInactive {
		t.Error("revoked link must stay inactive")
	}
}

// -- Linked party queries --

func TestGetLinkedPatients_EmptyNotError(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RoleCaregiver, "tom", "Tom Baker", "tom-caregiver-99")

	patients, err := svc.GetLinkedPatients(context.Background(), "tom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patients) != 0 {
		t.Errorf("expected empty list, got %v", patients)
	}
}

func TestGetLinkedCaregivers_PatientSide(t *testing.T) {
	svc, parties, _ := newTestService()
	_, tom := seedSarahAndTom(parties)
	svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom")
	if _, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821"); err != nil {
		t.Fatalf("link setup failed: %v", err)
	}

	caregivers, err := svc.GetLinkedCaregivers(context.Background(), "sarah")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(caregivers) != 1 || caregivers[0].ID != tom.ID {
		t.Errorf("expected [Tom], got %v", caregivers)
	}
}

// -- Allow-list management --

func TestAddAllowedCaregiver_Duplicate(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RolePatient, "sarah", "Sarah Connor", "sarah-4821")

	if _, err := svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.AddAllowedCaregiver(context.Background(), "sarah", "Tom-Caregiver-99", "Tom again")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate code, got %v", err)
	}
}

func TestAddAllowedCaregiver_CaregiverCallerRejected(t *testing.T) {
	svc, parties, _ := newTestService()
	parties.add(RoleCaregiver, "tom", "Tom Baker", "tom-caregiver-99")

	_, err := svc.AddAllowedCaregiver(context.Background(), "tom", "someone-1234", "X")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRemoveAllowedCaregiver_UnapprovesFutureLinks(t *testing.T) {
	svc, parties, _ := newTestService()
	seedSarahAndTom(parties)

	entry, err := svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RemoveAllowedCaregiver(context.Background(), "sarah", entry.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after removal, got %v", err)
	}
}

// -- Revocation --

func TestRevokeLink_PatientSide(t *testing.T) {
	svc, parties, _ := newTestService()
	_, tom := seedSarahAndTom(parties)
	svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom")
	if _, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821"); err != nil {
		t.Fatalf("link setup failed: %v", err)
	}

	if err := svc.RevokeLink(context.Background(), "sarah", tom.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	patients, _ := svc.GetLinkedPatients(context.Background(), "tom")
	if len(patients) != 0 {
		t.Error("revoked link must not appear in linked patients")
	}

	// Revoking again is a no-op.
	if err := svc.RevokeLink(context.Background(), "sarah", tom.ID); err != nil {
		t.Fatalf("repeated revoke must succeed, got %v", err)
	}
}

func TestRevokeLink_NoLink(t *testing.T) {
	svc, parties, _ := newTestService()
	_, tom := seedSarahAndTom(parties)

	err := svc.RevokeLink(context.Background(), "sarah", tom.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// -- Access checks --

func TestHasActiveLink(t *testing.T) {
	svc, parties, _ := newTestService()
	sarah, tom := seedSarahAndTom(parties)

	ok, err := svc.HasActiveLink(context.Background(), tom.ID, sarah.ID)
	if err != nil || ok {
		t.Fatalf("expected no active link, got ok=%v err=%v", ok, err)
	}

	svc.AddAllowedCaregiver(context.Background(), "sarah", "tom-caregiver-99", "Tom")
	if _, err := svc.LinkPatientToCaregiverTwoWay(context.Background(), "tom", "sarah-4821"); err != nil {
		t.Fatalf("link setup failed: %v", err)
	}

	ok, err = svc.HasActiveLink(context.Background(), tom.ID, sarah.ID)
	if err != nil || !ok {
		t.Fatalf("expected active link, got ok=%v err=%v", ok, err)
	}
}
