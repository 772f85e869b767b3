package bpl

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/fieldcrypt"
	"github.com/carelink/carelink/internal/platform/storage"
)

var aadhaarRe = regexp.MustCompile(`^[0-9]{12}$`)

// FieldCipher encrypts the Aadhaar number at rest.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type Service struct {
	repo   Repository
	crypt  FieldCipher
	store  storage.BucketStore
	bucket string
	logger zerolog.Logger
}

func NewService(repo Repository, crypt FieldCipher, store storage.BucketStore, bucket string, logger zerolog.Logger) *Service {
	return &Service{repo: repo, crypt: crypt, store: store, bucket: bucket, logger: logger}
}

// mask fills AadhaarMasked from the stored ciphertext. A value that cannot be
// decrypted (for example after a development key change) is fully masked.
func (s *Service) mask(r *Request) *Request {
	plain, err := s.crypt.Decrypt(r.AadhaarEnc)
	if err != nil {
		s.logger.Warn().Err(err).Str("bpl_request_id", r.ID.String()).Msg("cannot decrypt aadhaar number")
		plain = strings.Repeat("X", 12)
	}
	r.AadhaarMasked = fieldcrypt.Mask(plain)
	return r
}

func (s *Service) maskAll(items []*Request) []*Request {
	for _, r := range items {
		s.mask(r)
	}
	return items
}

func validate(sub *Submission) error {
	sub.ApplicantName = strings.TrimSpace(sub.ApplicantName)
	sub.BPLCardNumber = strings.TrimSpace(sub.BPLCardNumber)
	sub.AadhaarNumber = strings.NewReplacer(" ", "", "-", "").Replace(sub.AadhaarNumber)

	switch {
	case sub.ApplicantName == "":
		return apperr.Validation("applicant_name is required")
	case sub.BPLCardNumber == "":
		return apperr.Validation("bpl_card_number is required")
	case !aadhaarRe.MatchString(sub.AadhaarNumber):
		return apperr.Validation("aadhaar_number must be 12 digits")
	case sub.AnnualIncome < 0:
		return apperr.Validation("annual_income cannot be negative")
	case sub.FamilySize < 1:
		return apperr.Validation("family_size must be at least 1")
	case strings.TrimSpace(sub.Address) == "":
		return apperr.Validation("address is required")
	case strings.TrimSpace(sub.District) == "":
		return apperr.Validation("district is required")
	case strings.TrimSpace(sub.State) == "":
		return apperr.Validation("state is required")
	case sub.IncomeCertificate == nil:
		return apperr.Validation("%s document is required", FileIncomeCertificate)
	case sub.BPLCard == nil:
		return apperr.Validation("%s document is required", FileBPLCard)
	}
	return nil
}

// Submit files a new application for the patient. Only one pending
// application per patient is allowed.
func (s *Service) Submit(ctx context.Context, patientID uuid.UUID, sub *Submission) (*Request, error) {
	if err := validate(sub); err != nil {
		return nil, err
	}

	pending, err := s.repo.HasPending(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, apperr.Conflict("a bpl request is already pending")
	}

	enc, err := s.crypt.Encrypt(sub.AadhaarNumber)
	if err != nil {
		return nil, fmt.Errorf("encrypt aadhaar: %w", err)
	}

	req := &Request{
		PatientID:     patientID,
		ApplicantName: sub.ApplicantName,
		BPLCardNumber: sub.BPLCardNumber,
		AadhaarEnc:    enc,
		AnnualIncome:  sub.AnnualIncome,
		FamilySize:    sub.FamilySize,
		Address:       strings.TrimSpace(sub.Address),
		District:      strings.TrimSpace(sub.District),
		State:         strings.TrimSpace(sub.State),
		Status:        StatusPending,
	}

	prefix := "bpl/" + patientID.String()
	var uploaded []string
	upload := func(field string, f *storage.File) (string, error) {
		p := storage.ObjectPath(prefix+"/"+field, f.ContentType)
		url, err := storage.Put(ctx, s.store, s.bucket, p, f)
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", field, err)
		}
		uploaded = append(uploaded, p)
		return url, nil
	}

	err = func() error {
		var err error
		if req.IncomeCertificateURL, err = upload(FileIncomeCertificate, sub.IncomeCertificate); err != nil {
			return err
		}
		if req.BPLCardURL, err = upload(FileBPLCard, sub.BPLCard); err != nil {
			return err
		}
		return s.repo.Create(ctx, req)
	}()
	if err != nil {
		for _, p := range uploaded {
			if derr := s.store.Delete(context.Background(), s.bucket, p); derr != nil {
				s.logger.Error().Err(derr).Str("path", p).Msg("failed to remove orphaned upload")
			}
		}
		return nil, err
	}

	s.logger.Info().Str("bpl_request_id", req.ID.String()).Msg("bpl request submitted")
	req.AadhaarMasked = fieldcrypt.Mask(sub.AadhaarNumber)
	return req, nil
}

// Mine lists the patient's own applications.
func (s *Service) Mine(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	items, total, err := s.repo.List(ctx, ListFilter{PatientID: &patientID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, err
	}
	return s.maskAll(items), total, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Request, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	f.Search = strings.TrimSpace(f.Search)
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return s.maskAll(items), total, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.mask(r), nil
}

// UpdateStatus decides a pending application.
func (s *Service) UpdateStatus(ctx context.Context, id, reviewer uuid.UUID, u StatusUpdate) (*Request, error) {
	if u.Status != StatusApproved && u.Status != StatusRejected {
		return nil, apperr.Validation("status must be approved or rejected")
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, apperr.Transition(r.Status, u.Status)
	}

	r.Status = u.Status
	r.ReviewedBy = &reviewer
	if remarks := strings.TrimSpace(u.Remarks); remarks != "" {
		r.AdminRemarks = &remarks
	}
	if err := s.repo.Review(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info().Str("bpl_request_id", id.String()).Str("status", u.Status).Msg("bpl request reviewed")
	return s.mask(r), nil
}

// BulkDelete removes up to MaxBulkDelete applications and reports how many
// rows were deleted.
func (s *Service) BulkDelete(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("ids must not be empty")
	}
	if len(ids) > MaxBulkDelete {
		return 0, apperr.Validation("at most %d ids can be deleted at once", MaxBulkDelete)
	}
	urls, err := s.repo.BulkDelete(ctx, ids)
	if err != nil {
		return 0, err
	}
	n := len(urls) / 2
	s.logger.Info().Int("requested", len(ids)).Int("deleted", n).Msg("bpl requests deleted")
	s.removeDocuments(urls)
	return n, nil
}

// removeDocuments deletes the stored files of removed applications. Failures
// are logged and never undo the row deletion.
func (s *Service) removeDocuments(urls []string) {
	for _, u := range urls {
		p, ok := storage.PathFromURL(s.bucket, u)
		if !ok {
			s.logger.Warn().Str("url", u).Msg("document url outside the documents bucket")
			continue
		}
		if err := s.store.Delete(context.Background(), s.bucket, p); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Error().Err(err).Str("path", p).Msg("failed to remove bpl document")
		}
	}
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		Pending:  counts[StatusPending],
		Approved: counts[StatusApproved],
		Rejected: counts[StatusRejected],
	}
	st.Total = st.Pending + st.Approved + st.Rejected
	return st, nil
}
