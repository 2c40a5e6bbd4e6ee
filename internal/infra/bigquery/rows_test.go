package bigquery

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
)

func TestAccountRow_RoundTrip(t *testing.T) {
	acc := domain.Account{
		ID:             "acc-1",
		Name:           "Caja de ahorro",
		Type:           domain.AccountSavings,
		Currency:       domain.USD,
		InitialBalance: decimal.RequireFromString("1234.56"),
		Icon:           "piggy",
	}

	row := newAccountRow("user-1", acc, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if row.UserID != "user-1" || !row.Icon.Valid {
		t.Errorf("unexpected row: %+v", row)
	}

	got, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}
	if diff := cmp.Diff(acc, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTransactionRow_RoundTrip(t *testing.T) {
	tx := domain.Transaction{
		ID:          "tx-1",
		Date:        civil.Date{Year: 2024, Month: time.March, Day: 9},
		Amount:      decimal.RequireFromString("400"),
		Type:        domain.Transfer,
		Category:    domain.CategoryTransfer,
		Description: domain.TransferDescription,
		AccountID:   "a1",
		ToAccountID: "a2",
		CreatedAt:   time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
	}

	row := newTransactionRow("user-1", tx)
	if !row.ToAccountID.Valid || row.PaymentMethod.Valid || row.Merchant.Valid {
		t.Errorf("unexpected nullable fields: %+v", row)
	}

	got, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}
	if diff := cmp.Diff(tx, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRat(t *testing.T) {
	tests := []struct {
		in   *big.Rat
		want string
	}{
		{nil, "0"},
		{big.NewRat(1, 4), "0.25"},
		{big.NewRat(-10, 1), "-10"},
		{big.NewRat(1, 3), "0.333333333"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := fromRat(tt.in)
			if err != nil {
				t.Fatalf("fromRat failed: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("fromRat = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAccountUpdate(t *testing.T) {
	name := "Efectivo"
	bal := decimal.NewFromInt(50)
	icon := ""

	set, params := accountUpdate(domain.AccountPatch{Name: &name, InitialBalance: &bal, Icon: &icon})

	wantSet := []string{"account_name = @account_name", "initial_balance = @initial_balance", "icon = @icon"}
	if diff := cmp.Diff(wantSet, set); diff != "" {
		t.Errorf("SET mismatch (-want +got):\n%s", diff)
	}
	if len(params) != 3 {
		t.Fatalf("params = %d, want 3", len(params))
	}
	if v, ok := params[2].Value.(bigquery.NullString); !ok || v.Valid {
		t.Errorf("empty icon should be a NULL parameter, got %#v", params[2].Value)
	}

	if set, _ := accountUpdate(domain.AccountPatch{}); len(set) != 0 {
		t.Errorf("empty patch produced %v", set)
	}
}

func TestTransactionUpdate(t *testing.T) {
	date := civil.Date{Year: 2024, Month: time.April, Day: 1}
	method := domain.PaymentCredit

	set, params := transactionUpdate(domain.TransactionPatch{Date: &date, PaymentMethod: &method})

	if joinSet(set) != "transaction_date = @transaction_date, payment_method = @payment_method" {
		t.Errorf("joinSet = %q", joinSet(set))
	}
	if params[0].Value != date {
		t.Errorf("date param = %v, want %v", params[0].Value, date)
	}
}

func TestSchema(t *testing.T) {
	schema, err := Schema(TransactionRow{})
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}

	byName := make(map[string]*bigquery.FieldSchema)
	for _, f := range schema {
		byName[f.Name] = f
	}
	if f := byName["amount"]; f == nil || f.Type != bigquery.NumericFieldType || !f.Required {
		t.Errorf("amount field = %+v, want REQUIRED NUMERIC", f)
	}
	if f := byName["to_account_id"]; f == nil || f.Required {
		t.Errorf("to_account_id field = %+v, want NULLABLE", f)
	}
	if f := byName["transaction_date"]; f == nil || f.Type != bigquery.DateFieldType {
		t.Errorf("transaction_date field = %+v, want DATE", f)
	}
}

func TestClassify(t *testing.T) {
	denied := &googleapi.Error{Code: http.StatusForbidden, Message: "Access Denied"}
	if err := classify(fmt.Errorf("wrapped: %w", denied)); !store.IsPermissionDenied(err) {
		t.Errorf("classify(403) = %v, want permission denied", err)
	}

	missing := &googleapi.Error{Code: http.StatusNotFound}
	if err := classify(missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("classify(404) = %v, want not found", err)
	}

	other := errors.New("network down")
	if err := classify(other); err != other {
		t.Errorf("classify(other) = %v, want it unchanged", err)
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql":       {Data: []byte("SELECT 2")},
		"0001_first.sql":        {Data: []byte("SELECT 1")},
		"README.md":             {Data: []byte("docs")},
		"001_bad_version.sql":   {Data: []byte("SELECT 0")},
		"0003_third.sql.backup": {Data: []byte("SELECT 3")},
	}

	got, err := ReadMigrations(fsys)
	if err != nil {
		t.Fatalf("ReadMigrations failed: %v", err)
	}
	if len(got) != 2 || got[0].Version != 1 || got[1].Version != 2 || got[1].Name != "second" {
		t.Fatalf("ReadMigrations = %+v", got)
	}
	if got[0].Checksum == got[1].Checksum || len(got[0].Checksum) != 64 {
		t.Errorf("checksums = %q, %q", got[0].Checksum, got[1].Checksum)
	}

	dup := fstest.MapFS{
		"0001_a.sql": {Data: []byte("x")},
		"0001_b.sql": {Data: []byte("y")},
	}
	if _, err := ReadMigrations(dup); err == nil {
		t.Error("duplicate versions should fail")
	}
}

func TestEmbeddedMigrationsCoverRowStructs(t *testing.T) {
	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("got %d migrations, want at least 2", len(migrations))
	}

	var all strings.Builder
	for _, m := range migrations {
		all.WriteString(m.SQL)
	}
	for name, row := range Tables {
		schema, err := Schema(row)
		if err != nil {
			t.Fatalf("Schema(%s) failed: %v", name, err)
		}
		for _, f := range schema {
			if !strings.Contains(all.String(), f.Name) {
				t.Errorf("column %s.%s is not created by any migration", name, f.Name)
			}
		}
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "a", Checksum: "c1"},
		{Version: 2, Name: "b", Checksum: "c2"},
		{Version: 3, Name: "c", Checksum: "c3"},
	}

	pending, err := Pending(migrations, []AppliedMigration{{Version: 1, Checksum: "c1"}, {Version: 2}})
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("Pending = %+v, want only version 3", pending)
	}

	if _, err := Pending(migrations, []AppliedMigration{{Version: 1, Checksum: "edited"}}); err == nil {
		t.Error("changed checksum should fail")
	}
}

func TestRender(t *testing.T) {
	s := &Store{projectID: "proj", datasetID: "ds"}
	got := s.render("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.accounts`")
	if got != "CREATE TABLE `proj.ds.accounts`" {
		t.Errorf("render = %q", got)
	}
}

func TestCompareSchema(t *testing.T) {
	want, err := Schema(AccountRow{})
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}

	var live bigquery.Schema
	for _, f := range want {
		c := *f
		switch c.Name {
		case "icon":
			continue
		case "initial_balance":
			c.Type = bigquery.FloatFieldType
		case "account_name":
			c.Required = false
		}
		live = append(live, &c)
	}
	live = append(live, &bigquery.FieldSchema{Name: "extra", Type: bigquery.StringFieldType})

	drift := compareSchema("accounts", want, live)
	var cols []string
	for _, d := range drift {
		cols = append(cols, d.Column)
	}
	if diff := cmp.Diff([]string{"account_name", "initial_balance", "icon"}, cols); diff != "" {
		t.Errorf("drift columns mismatch (-want +got):\n%s", diff)
	}
	if len(compareSchema("accounts", want, want)) != 0 {
		t.Error("identical schemas should not drift")
	}
}
