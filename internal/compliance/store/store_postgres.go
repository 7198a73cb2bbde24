package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"fieldcomply/internal/compliance/models"
	id "fieldcomply/pkg/domain"
	"fieldcomply/pkg/platform/sentinel"
	txcontext "fieldcomply/pkg/platform/tx"
)

const (
	ownerTechnician = "TECHNICIAN"
	ownerCompany    = "COMPANY"

	pgForeignKeyViolation = "23503"
)

// PostgresStore persists compliance records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store. The schema is applied by
// platform/postgres.Migrate.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// CreateTechnician inserts a technician with its links and credentials.
func (s *PostgresStore) CreateTechnician(ctx context.Context, tech *models.Technician) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO technicians (id, name, branch_id, compliance_score, overall_status)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.UUID(tech.ID), tech.Name, nullUUID(uuid.UUID(tech.BranchID)), tech.ComplianceScore, nullStatus(tech.OverallStatus))
		if err != nil {
			return fmt.Errorf("insert technician: %w", err)
		}
		for _, companyID := range tech.CompanyIDs.Slice() {
			if err := s.LinkTechnician(ctx, tech.ID, companyID); err != nil {
				return err
			}
		}
		return s.insertCredentials(ctx, ownerTechnician, uuid.UUID(tech.ID), tech.Credentials, true)
	})
}

// CreateCompany inserts a company with its requirement lists and credentials.
func (s *PostgresStore) CreateCompany(ctx context.Context, company *models.Company) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO companies (id, name, compliance_score, overall_status)
			VALUES ($1, $2, $3, $4)
		`, uuid.UUID(company.ID), company.Name, company.ComplianceScore, nullStatus(company.OverallStatus))
		if err != nil {
			return fmt.Errorf("insert company: %w", err)
		}
		if err := s.SetCompanyRequirements(ctx, company.ID, company.RequiredDocTypes, company.RequiredDocTypesForCompany); err != nil {
			return err
		}
		return s.insertCredentials(ctx, ownerCompany, uuid.UUID(company.ID), company.Credentials, true)
	})
}

func (s *PostgresStore) ListDocumentTypes(ctx context.Context) ([]models.DocumentType, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, name, scope, is_global, is_active
		FROM document_types
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentType
	for rows.Next() {
		var (
			rowID uuid.UUID
			scope string
			dt    models.DocumentType
		)
		if err := rows.Scan(&rowID, &dt.Name, &scope, &dt.IsGlobal, &dt.IsActive); err != nil {
			return nil, fmt.Errorf("scan document type: %w", err)
		}
		dt.ID = id.DocumentTypeID(rowID)
		if dt.Scope, err = models.ParseScope(scope); err != nil {
			return nil, fmt.Errorf("document type %s: %w", rowID, err)
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertDocumentType(ctx context.Context, docType models.DocumentType) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO document_types (id, name, scope, is_global, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			scope = EXCLUDED.scope,
			is_global = EXCLUDED.is_global,
			is_active = EXCLUDED.is_active
	`, uuid.UUID(docType.ID), docType.Name, string(docType.Scope), docType.IsGlobal, docType.IsActive)
	if err != nil {
		return fmt.Errorf("upsert document type: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTechnicians(ctx context.Context) ([]*models.Technician, error) {
	return s.loadTechnicians(ctx, `
		SELECT id, name, branch_id, compliance_score, overall_status
		FROM technicians
		ORDER BY name
	`)
}

func (s *PostgresStore) FindTechnician(ctx context.Context, technicianID id.TechnicianID) (*models.Technician, error) {
	techs, err := s.loadTechnicians(ctx, `
		SELECT id, name, branch_id, compliance_score, overall_status
		FROM technicians
		WHERE id = $1
	`, uuid.UUID(technicianID))
	if err != nil {
		return nil, err
	}
	if len(techs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return techs[0], nil
}

func (s *PostgresStore) loadTechnicians(ctx context.Context, query string, args ...any) ([]*models.Technician, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query technicians: %w", err)
	}
	defer rows.Close()

	var (
		out   []*models.Technician
		byID  = make(map[uuid.UUID]*models.Technician)
		owner []string
	)
	for rows.Next() {
		var (
			rowID    uuid.UUID
			branchID uuid.NullUUID
			st       sql.NullString
			tech     = &models.Technician{CompanyIDs: models.NewSet[id.CompanyID]()}
		)
		if err := rows.Scan(&rowID, &tech.Name, &branchID, &tech.ComplianceScore, &st); err != nil {
			return nil, fmt.Errorf("scan technician: %w", err)
		}
		tech.ID = id.TechnicianID(rowID)
		if branchID.Valid {
			tech.BranchID = id.BranchID(branchID.UUID)
		}
		tech.OverallStatus = parseStoredStatus(st)
		out = append(out, tech)
		byID[rowID] = tech
		owner = append(owner, rowID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate technicians: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	links, err := s.execer(ctx).QueryContext(ctx, `
		SELECT technician_id, company_id
		FROM technician_companies
		WHERE technician_id = ANY($1::uuid[])
	`, pq.Array(owner))
	if err != nil {
		return nil, fmt.Errorf("query technician links: %w", err)
	}
	defer links.Close()
	for links.Next() {
		var techID, companyID uuid.UUID
		if err := links.Scan(&techID, &companyID); err != nil {
			return nil, fmt.Errorf("scan technician link: %w", err)
		}
		if tech, ok := byID[techID]; ok {
			tech.CompanyIDs.Add(id.CompanyID(companyID))
		}
	}
	if err := links.Err(); err != nil {
		return nil, fmt.Errorf("iterate technician links: %w", err)
	}

	creds, err := s.loadCredentials(ctx, ownerTechnician, owner)
	if err != nil {
		return nil, err
	}
	for ownerID, list := range creds {
		if tech, ok := byID[ownerID]; ok {
			tech.Credentials = list
		}
	}
	return out, nil
}

func (s *PostgresStore) TechniciansForCompany(ctx context.Context, companyID id.CompanyID) ([]id.TechnicianID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT technician_id
		FROM technician_companies
		WHERE company_id = $1
		ORDER BY technician_id
	`, uuid.UUID(companyID))
	if err != nil {
		return nil, fmt.Errorf("query technicians for company: %w", err)
	}
	defer rows.Close()

	var out []id.TechnicianID
	for rows.Next() {
		var techID uuid.UUID
		if err := rows.Scan(&techID); err != nil {
			return nil, fmt.Errorf("scan technician id: %w", err)
		}
		out = append(out, id.TechnicianID(techID))
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetTechnicianBranch(ctx context.Context, technicianID id.TechnicianID, branchID id.BranchID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE technicians SET branch_id = $2 WHERE id = $1
	`, uuid.UUID(technicianID), nullUUID(uuid.UUID(branchID)))
	if err != nil {
		return fmt.Errorf("set technician branch: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) LinkTechnician(ctx context.Context, technicianID id.TechnicianID, companyID id.CompanyID) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO technician_companies (technician_id, company_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, uuid.UUID(technicianID), uuid.UUID(companyID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("link technician: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnlinkTechnician(ctx context.Context, technicianID id.TechnicianID, companyID id.CompanyID) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM technician_companies WHERE technician_id = $1 AND company_id = $2
	`, uuid.UUID(technicianID), uuid.UUID(companyID))
	if err != nil {
		return fmt.Errorf("unlink technician: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	return s.loadCompanies(ctx, `
		SELECT id, name, compliance_score, overall_status
		FROM companies
		ORDER BY name
	`)
}

func (s *PostgresStore) FindCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	companies, err := s.loadCompanies(ctx, `
		SELECT id, name, compliance_score, overall_status
		FROM companies
		WHERE id = $1
	`, uuid.UUID(companyID))
	if err != nil {
		return nil, err
	}
	if len(companies) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return companies[0], nil
}

// FindCompanies returns the companies that exist; unknown IDs are skipped.
func (s *PostgresStore) FindCompanies(ctx context.Context, ids []id.CompanyID) ([]*models.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, companyID := range ids {
		keys[i] = companyID.String()
	}
	return s.loadCompanies(ctx, `
		SELECT id, name, compliance_score, overall_status
		FROM companies
		WHERE id = ANY($1::uuid[])
		ORDER BY name
	`, pq.Array(keys))
}

func (s *PostgresStore) loadCompanies(ctx context.Context, query string, args ...any) ([]*models.Company, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var (
		out   []*models.Company
		byID  = make(map[uuid.UUID]*models.Company)
		owner []string
	)
	for rows.Next() {
		var (
			rowID   uuid.UUID
			st      sql.NullString
			company = &models.Company{
				RequiredDocTypes:           models.NewSet[id.DocumentTypeID](),
				RequiredDocTypesForCompany: models.NewSet[id.DocumentTypeID](),
			}
		)
		if err := rows.Scan(&rowID, &company.Name, &company.ComplianceScore, &st); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		company.ID = id.CompanyID(rowID)
		company.OverallStatus = parseStoredStatus(st)
		out = append(out, company)
		byID[rowID] = company
		owner = append(owner, rowID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	reqs, err := s.execer(ctx).QueryContext(ctx, `
		SELECT company_id, document_type_id, applies_to
		FROM company_requirements
		WHERE company_id = ANY($1::uuid[])
	`, pq.Array(owner))
	if err != nil {
		return nil, fmt.Errorf("query company requirements: %w", err)
	}
	defer reqs.Close()
	for reqs.Next() {
		var (
			companyID, docID uuid.UUID
			appliesTo        string
		)
		if err := reqs.Scan(&companyID, &docID, &appliesTo); err != nil {
			return nil, fmt.Errorf("scan company requirement: %w", err)
		}
		company, ok := byID[companyID]
		if !ok {
			continue
		}
		if appliesTo == ownerCompany {
			company.RequiredDocTypesForCompany.Add(id.DocumentTypeID(docID))
		} else {
			company.RequiredDocTypes.Add(id.DocumentTypeID(docID))
		}
	}
	if err := reqs.Err(); err != nil {
		return nil, fmt.Errorf("iterate company requirements: %w", err)
	}

	creds, err := s.loadCredentials(ctx, ownerCompany, owner)
	if err != nil {
		return nil, err
	}
	for ownerID, list := range creds {
		if company, ok := byID[ownerID]; ok {
			company.Credentials = list
		}
	}
	return out, nil
}

// SetCompanyRequirements replaces both requirement lists of a company atomically.
func (s *PostgresStore) SetCompanyRequirements(ctx context.Context, companyID id.CompanyID, forTechnicians, forCompany models.Set[id.DocumentTypeID]) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := s.execer(ctx)
		var exists bool
		if err := exec.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)
		`, uuid.UUID(companyID)).Scan(&exists); err != nil {
			return fmt.Errorf("check company: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		if _, err := exec.ExecContext(ctx, `
			DELETE FROM company_requirements WHERE company_id = $1
		`, uuid.UUID(companyID)); err != nil {
			return fmt.Errorf("clear company requirements: %w", err)
		}
		for appliesTo, set := range map[string]models.Set[id.DocumentTypeID]{
			ownerTechnician: forTechnicians,
			ownerCompany:    forCompany,
		} {
			if set.Len() == 0 {
				continue
			}
			if _, err := exec.ExecContext(ctx, `
				INSERT INTO company_requirements (company_id, document_type_id, applies_to)
				SELECT $1::uuid, unnest($2::uuid[]), $3::text
			`, uuid.UUID(companyID), pq.Array(docKeys(set)), appliesTo); err != nil {
				if isForeignKeyViolation(err) {
					return sentinel.ErrNotFound
				}
				return fmt.Errorf("insert company requirements: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) UpsertTechnicianCredential(ctx context.Context, technicianID id.TechnicianID, cred models.Credential) error {
	return s.upsertCredential(ctx, "technicians", ownerTechnician, uuid.UUID(technicianID), cred)
}

func (s *PostgresStore) UpsertCompanyCredential(ctx context.Context, companyID id.CompanyID, cred models.Credential) error {
	return s.upsertCredential(ctx, "companies", ownerCompany, uuid.UUID(companyID), cred)
}

func (s *PostgresStore) upsertCredential(ctx context.Context, ownerTable, ownerKind string, ownerID uuid.UUID, cred models.Credential) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := s.execer(ctx)
		var exists bool
		// ownerTable is one of two constants, never user input.
		if err := exec.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+ownerTable+` WHERE id = $1)`, ownerID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check credential owner: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		_, err := exec.ExecContext(ctx, `
			INSERT INTO credentials (id, owner_kind, owner_id, document_type_id, expiry_date, status, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (owner_kind, owner_id, document_type_id) DO UPDATE SET
				expiry_date = EXCLUDED.expiry_date,
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at
		`, uuid.UUID(cred.ID), ownerKind, ownerID, uuid.UUID(cred.DocumentTypeID),
			nullDate(cred.ExpiryDate), cred.Status.String(), cred.UpdatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("upsert credential: %w", err)
		}
		return nil
	})
}

// InsertTechnicianCredentials adds credentials for document types the technician
// holds nothing for. Existing records are left untouched.
func (s *PostgresStore) InsertTechnicianCredentials(ctx context.Context, technicianID id.TechnicianID, creds []models.Credential) error {
	return s.insertCredentials(ctx, ownerTechnician, uuid.UUID(technicianID), creds, false)
}

func (s *PostgresStore) InsertCompanyCredentials(ctx context.Context, companyID id.CompanyID, creds []models.Credential) error {
	return s.insertCredentials(ctx, ownerCompany, uuid.UUID(companyID), creds, false)
}

// insertCredentials batch inserts with unnest. Pending placeholders never carry
// an expiry, so the batch path only handles expiry-less rows; full credentials
// are written one by one.
func (s *PostgresStore) insertCredentials(ctx context.Context, ownerKind string, ownerID uuid.UUID, creds []models.Credential, withExpiry bool) error {
	if len(creds) == 0 {
		return nil
	}
	if withExpiry {
		for _, c := range creds {
			if err := s.upsertCredential(ctx, ownerKindTable(ownerKind), ownerKind, ownerID, c); err != nil {
				return err
			}
		}
		return nil
	}

	credIDs := make([]string, len(creds))
	docIDs := make([]string, len(creds))
	statuses := make([]string, len(creds))
	updated := make([]string, len(creds))
	for i, c := range creds {
		credIDs[i] = c.ID.String()
		docIDs[i] = c.DocumentTypeID.String()
		statuses[i] = c.Status.String()
		updated[i] = c.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO credentials (id, owner_kind, owner_id, document_type_id, status, updated_at)
		SELECT unnest($1::uuid[]), $2::text, $3::uuid, unnest($4::uuid[]), unnest($5::text[]), unnest($6::timestamptz[])
		ON CONFLICT (owner_kind, owner_id, document_type_id) DO NOTHING
	`, pq.Array(credIDs), ownerKind, ownerID, pq.Array(docIDs), pq.Array(statuses), pq.Array(updated))
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert credentials batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) loadCredentials(ctx context.Context, ownerKind string, owners []string) (map[uuid.UUID][]models.Credential, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT owner_id, id, document_type_id, expiry_date, status, updated_at
		FROM credentials
		WHERE owner_kind = $1 AND owner_id = ANY($2::uuid[])
		ORDER BY updated_at
	`, ownerKind, pq.Array(owners))
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.Credential)
	for rows.Next() {
		var (
			ownerID, credID, docID uuid.UUID
			expiry                 sql.NullTime
			st                     string
			cred                   models.Credential
		)
		if err := rows.Scan(&ownerID, &credID, &docID, &expiry, &st, &cred.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		cred.ID = id.CredentialID(credID)
		cred.DocumentTypeID = id.DocumentTypeID(docID)
		if expiry.Valid {
			d := expiry.Time
			cred.ExpiryDate = &d
		}
		cred.Status = parseStoredStatus(sql.NullString{String: st, Valid: true})
		out[ownerID] = append(out[ownerID], cred)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveTechnicianResult(ctx context.Context, technicianID id.TechnicianID, result models.Result) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE technicians SET compliance_score = $2, overall_status = $3 WHERE id = $1
	`, uuid.UUID(technicianID), result.Score, result.Status.String())
	if err != nil {
		return fmt.Errorf("save technician result: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveCompanyResult(ctx context.Context, companyID id.CompanyID, result models.Result) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE companies SET compliance_score = $2, overall_status = $3 WHERE id = $1
	`, uuid.UUID(companyID), result.Score, result.Status.String())
	if err != nil {
		return fmt.Errorf("save company result: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

func ownerKindTable(ownerKind string) string {
	if ownerKind == ownerCompany {
		return "companies"
	}
	return "technicians"
}

// parseStoredStatus tolerates rows never recomputed; they read as the zero Status.
func parseStoredStatus(v sql.NullString) models.Status {
	if !v.Valid {
		return 0
	}
	st, err := models.ParseStatus(v.String)
	if err != nil {
		return 0
	}
	return st
}

func nullStatus(st models.Status) sql.NullString {
	if !st.IsValid() {
		return sql.NullString{}
	}
	return sql.NullString{String: st.String(), Valid: true}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	y, m, d := t.Date()
	return sql.NullTime{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func docKeys(set models.Set[id.DocumentTypeID]) []string {
	keys := make([]string, 0, set.Len())
	for _, docID := range set.Slice() {
		keys = append(keys, docID.String())
	}
	return keys
}
