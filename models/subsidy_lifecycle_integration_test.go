package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/aivisionaries/hydropay_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestSubsidyLifecycle_EndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "hydropay_test")
	// No Pub/Sub or mail consumer in CI.
	t.Setenv("OUTBOX_DIRECT_DISPATCH", "true")
	t.Setenv("OTP_DELIVERY_DISABLED", "true")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	models.MigrateTable()

	// Actors.
	producer := mustCreateUser(t, ctx, "producer", "producer@test.local")
	auditor := mustCreateUser(t, ctx, "auditor", "auditor@test.local")
	govt := mustCreateUser(t, ctx, "government", "govt@test.local")
	bank := mustCreateUser(t, ctx, "bank", "bank@test.local")

	producerCtx := actorContext(ctx, producer)
	auditorCtx := actorContext(ctx, auditor)
	govtCtx := actorContext(ctx, govt)
	bankCtx := actorContext(ctx, bank)

	// Rate policy: 50,000 per ton of electrolysis capacity.
	ratePerTon := decimal.NewFromInt(50000)
	if _, err := models.CreateSubsidyPolicy(govtCtx, &models.NewSubsidyPolicy{
		TechnologyType: "electrolysis",
		RatePerTon:     &ratePerTon,
	}); err != nil {
		t.Fatalf("CreateSubsidyPolicy: %v", err)
	}

	// 1) Producer applies.
	app, err := models.CreateApplication(producerCtx, producer.ID, &models.NewApplication{
		ProjectName:    "GreenH2 Plant",
		TechnologyType: "electrolysis",
		CapacityTons:   decimal.NewFromInt(100),
		CapacityMw:     decimal.NewFromInt(20),
		CapexEstimate:  decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.Status != models.ApplicationStatusPending {
		t.Fatalf("new application status = %s, want pending", app.Status)
	}

	recommended, err := workflow.RecommendedSubsidy(bankCtx, app)
	if err != nil {
		t.Fatalf("RecommendedSubsidy: %v", err)
	}
	if want := decimal.NewFromInt(5_000_000); !recommended.Equal(want) {
		t.Fatalf("recommended subsidy = %s, want %s", recommended, want)
	}

	// 2) First audit finds gaps: partially compliant sends the application back.
	if _, err := workflow.SubmitAudit(auditorCtx, app.ID, auditor.ID, &models.NewAudit{
		TechnicalCompliance:     "partially_compliant",
		FinancialCompliance:     "compliant",
		EnvironmentalCompliance: "compliant",
		ComplianceStatus:        "partially_compliant",
		Score:                   55,
		Verified:                false,
	}); err != nil {
		t.Fatalf("SubmitAudit (first): %v", err)
	}
	assertStatus(t, ctx, app.ID, models.ApplicationStatusRequiresRevision)

	// Government cannot act on a requires_revision application.
	amt := decimal.NewFromInt(5_000_000)
	if _, err := workflow.ReviewApplication(govtCtx, app.ID, &workflow.ReviewInput{
		Decision:       "approve",
		ApprovedAmount: &amt,
	}); !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("ReviewApplication before verification: err = %v, want ErrorInvalidState", err)
	}

	// 3) Producer revises and resubmits.
	if _, err := workflow.ResubmitApplication(producerCtx, app.ID, producer.ID, &models.NewApplication{
		ProjectName:    "GreenH2 Plant",
		TechnologyType: "electrolysis",
		CapacityTons:   decimal.NewFromInt(100),
		CapacityMw:     decimal.NewFromInt(20),
		CapexEstimate:  decimal.NewFromInt(50),
		ProjectDetails: "revised emissions annexure",
	}); err != nil {
		t.Fatalf("ResubmitApplication: %v", err)
	}
	assertStatus(t, ctx, app.ID, models.ApplicationStatusPending)

	// 4) Second audit passes; same auditor overwrites their own record.
	if _, err := workflow.SubmitAudit(auditorCtx, app.ID, auditor.ID, &models.NewAudit{
		TechnicalCompliance:     "compliant",
		FinancialCompliance:     "compliant",
		EnvironmentalCompliance: "compliant",
		ComplianceStatus:        "compliant",
		Score:                   88,
		Verified:                true,
	}); err != nil {
		t.Fatalf("SubmitAudit (second): %v", err)
	}
	assertStatus(t, ctx, app.ID, models.ApplicationStatusAuditorVerified)

	var auditCount int64
	if err := db.WithContext(ctx).Model(&models.Audit{}).
		Where("application_id = ?", app.ID).Count(&auditCount).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if auditCount != 1 {
		t.Fatalf("audit rows = %d, want 1 (resubmission must overwrite)", auditCount)
	}

	// 5) Government approves and sanctions the full recommendation.
	approved, err := workflow.ReviewApplication(govtCtx, app.ID, &workflow.ReviewInput{
		Decision:       "approve",
		ApprovedAmount: &amt,
		Comments:       "sanctioned per recommendation",
	})
	if err != nil {
		t.Fatalf("ReviewApplication: %v", err)
	}
	if approved.Status != models.ApplicationStatusGovtApproved {
		t.Fatalf("reviewed status = %s, want govt_approved", approved.Status)
	}
	if approved.SanctionedAmount == nil || !approved.SanctionedAmount.Equal(amt) {
		t.Fatalf("sanctioned amount = %v, want %s", approved.SanctionedAmount, amt)
	}
	fresh := mustGetApplication(t, ctx, app.ID)
	if !strings.HasPrefix(fresh.ApprovalReference, "SAN-") {
		t.Fatalf("approval reference %q missing SAN- prefix", fresh.ApprovalReference)
	}

	// 6) Milestone plan: 60% + 40%. Amounts derive from the sanctioned amount.
	plan, err := workflow.CreateMilestonePlan(govtCtx, app.ID, []*models.NewMilestone{
		{Name: "Plant commissioning", TargetPercent: decimal.NewFromInt(60)},
		{Name: "First production run", TargetPercent: decimal.NewFromInt(40)},
	})
	if err != nil {
		t.Fatalf("CreateMilestonePlan: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("milestones created = %d, want 2", len(plan))
	}
	if want := decimal.NewFromInt(3_000_000); !plan[0].TargetAmount.Equal(want) {
		t.Fatalf("milestone 1 target amount = %s, want %s", plan[0].TargetAmount, want)
	}

	// The plan already totals 100%: any further tranche must be refused.
	if _, err := workflow.CreateMilestonePlan(govtCtx, app.ID, []*models.NewMilestone{
		{Name: "Bonus tranche", TargetPercent: decimal.NewFromInt(10)},
	}); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("over-100%% plan: err = %v, want ErrorValidation", err)
	}

	beneficiary := models.BeneficiaryDetails{
		Name:    "GreenH2 Pvt Ltd",
		Account: "000111222333",
		Ifsc:    "HDFC0001234",
	}

	// Unverified milestones are not payable.
	if _, err := workflow.PayMilestone(bankCtx, plan[0].ID, bank.ID, beneficiary, ""); !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("PayMilestone before verification: err = %v, want ErrorInvalidState", err)
	}

	// 7) First tranche: complete -> verify -> pay. Application stays approved.
	if _, err := workflow.MarkMilestoneComplete(producerCtx, plan[0].ID, producer.ID); err != nil {
		t.Fatalf("MarkMilestoneComplete: %v", err)
	}
	if _, err := workflow.VerifyMilestone(auditorCtx, plan[0].ID, true); err != nil {
		t.Fatalf("VerifyMilestone: %v", err)
	}

	// The verdict lands on the application's audit trail.
	audit, err := models.GetAuditForApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetAuditForApplication: %v", err)
	}
	trail, err := models.ListAuditLog(ctx, audit.ID)
	if err != nil {
		t.Fatalf("ListAuditLog: %v", err)
	}
	var verdict *models.AuditLogEntry
	for _, entry := range trail {
		if entry.Action == workflow.ActionVerifyMilestone && strings.Contains(entry.Detail, fmt.Sprintf(`"milestone_id":%d`, plan[0].ID)) {
			verdict = entry
		}
	}
	if verdict == nil {
		t.Fatalf("no %s trail entry for milestone %d (trail has %d entries)", workflow.ActionVerifyMilestone, plan[0].ID, len(trail))
	}
	if verdict.ActorId != auditor.ID || verdict.ActorName != auditor.Name {
		t.Errorf("verdict actor = (%d, %q), want (%d, %q)", verdict.ActorId, verdict.ActorName, auditor.ID, auditor.Name)
	}
	txn1, err := workflow.PayMilestone(bankCtx, plan[0].ID, bank.ID, beneficiary, "tranche 1")
	if err != nil {
		t.Fatalf("PayMilestone (tranche 1): %v", err)
	}
	if !txn1.Amount.Equal(decimal.NewFromInt(3_000_000)) {
		t.Fatalf("tranche 1 amount = %s, want 3000000", txn1.Amount)
	}
	assertStatus(t, ctx, app.ID, models.ApplicationStatusGovtApproved)

	// Paying the same tranche twice must conflict.
	if _, err := workflow.PayMilestone(bankCtx, plan[0].ID, bank.ID, beneficiary, ""); !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("double milestone payment: err = %v, want ErrorConflict", err)
	}

	// 8) Last tranche paid closes the application.
	if _, err := workflow.MarkMilestoneComplete(producerCtx, plan[1].ID, producer.ID); err != nil {
		t.Fatalf("MarkMilestoneComplete (tranche 2): %v", err)
	}
	if _, err := workflow.VerifyMilestone(auditorCtx, plan[1].ID, true); err != nil {
		t.Fatalf("VerifyMilestone (tranche 2): %v", err)
	}
	if _, err := workflow.PayMilestone(bankCtx, plan[1].ID, bank.ID, beneficiary, "tranche 2"); err != nil {
		t.Fatalf("PayMilestone (tranche 2): %v", err)
	}
	assertStatus(t, ctx, app.ID, models.ApplicationStatusFundReleased)

	// A full release on an already-disbursed application can never succeed.
	if _, err := workflow.ReleaseFunds(bankCtx, app.ID, bank.ID, &workflow.ReleaseInput{
		Amount:      amt,
		Beneficiary: beneficiary,
	}); !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("ReleaseFunds after fund_released: err = %v, want ErrorInvalidState", err)
	}

	// Every status flip left an outbox row behind, in the same transaction.
	var eventCount int64
	if err := db.WithContext(ctx).Model(&models.StatusEventRecord{}).
		Where("application_id = ?", app.ID).Count(&eventCount).Error; err != nil {
		t.Fatalf("count status events: %v", err)
	}
	// submit-audit x2, resubmit, review, final milestone payment.
	if eventCount != 5 {
		t.Fatalf("status event rows = %d, want 5", eventCount)
	}

	// 9) Drain the outbox in direct-dispatch mode (no Pub/Sub in CI).
	dispatcher := workflow.NewOutboxDispatcher(db, config.GetLogger())
	dispatcher.PollInterval = 100 * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	go dispatcher.Run(runCtx)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var pending int64
		if err := db.WithContext(ctx).Model(&models.StatusEventRecord{}).
			Where("application_id = ? AND publish_status <> ?", app.ID, models.OutboxPublishStatusSent).
			Count(&pending).Error; err != nil {
			t.Fatalf("count undispatched events: %v", err)
		}
		if pending == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	cancel()

	var events []models.StatusEventRecord
	if err := db.WithContext(ctx).
		Where("application_id = ?", app.ID).Find(&events).Error; err != nil {
		t.Fatalf("load status events: %v", err)
	}
	for _, ev := range events {
		if ev.PublishStatus != models.OutboxPublishStatusSent {
			t.Fatalf("event %d publish status = %s, want SENT", ev.ID, ev.PublishStatus)
		}
		if ev.PubSubMessageId == nil || !strings.HasPrefix(*ev.PubSubMessageId, "direct:") {
			t.Fatalf("event %d message id = %v, want direct: prefix", ev.ID, ev.PubSubMessageId)
		}
	}
}

func TestReleaseFunds_CeilingAndTerminality(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "hydropay_test")
	t.Setenv("OUTBOX_DIRECT_DISPATCH", "true")

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	models.MigrateTable()

	producer := mustCreateUser(t, ctx, "producer", "producer2@test.local")
	auditor := mustCreateUser(t, ctx, "auditor", "auditor2@test.local")
	govt := mustCreateUser(t, ctx, "government", "govt2@test.local")
	bank := mustCreateUser(t, ctx, "bank", "bank2@test.local")

	app, err := models.CreateApplication(actorContext(ctx, producer), producer.ID, &models.NewApplication{
		ProjectName:    "Compact Electrolyser",
		TechnologyType: "electrolysis",
		CapacityTons:   decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	if _, err := workflow.SubmitAudit(actorContext(ctx, auditor), app.ID, auditor.ID, &models.NewAudit{
		TechnicalCompliance:     "compliant",
		FinancialCompliance:     "compliant",
		EnvironmentalCompliance: "compliant",
		ComplianceStatus:        "compliant",
		Score:                   90,
		Verified:                true,
	}); err != nil {
		t.Fatalf("SubmitAudit: %v", err)
	}

	sanctioned := decimal.NewFromInt(1_000_000)
	if _, err := workflow.ReviewApplication(actorContext(ctx, govt), app.ID, &workflow.ReviewInput{
		Decision:       "approve",
		ApprovedAmount: &sanctioned,
	}); err != nil {
		t.Fatalf("ReviewApplication: %v", err)
	}

	beneficiary := models.BeneficiaryDetails{
		Name:    "Compact Electrolyser Ltd",
		Account: "999888777666",
		Ifsc:    "SBIN0005678",
	}
	bankCtx := actorContext(ctx, bank)

	// Above the sanctioned amount: refused.
	if _, err := workflow.ReleaseFunds(bankCtx, app.ID, bank.ID, &workflow.ReleaseInput{
		Amount:      decimal.NewFromInt(2_000_000),
		Beneficiary: beneficiary,
	}); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("over-ceiling release: err = %v, want ErrorValidation", err)
	}

	txn, err := workflow.ReleaseFunds(bankCtx, app.ID, bank.ID, &workflow.ReleaseInput{
		Amount:      sanctioned,
		Beneficiary: beneficiary,
		Comments:    "full subsidy",
	})
	if err != nil {
		t.Fatalf("ReleaseFunds: %v", err)
	}
	if txn.Type != models.TransactionTypeFullSubsidy {
		t.Fatalf("transaction type = %s, want full_subsidy", txn.Type)
	}
	if !strings.HasPrefix(txn.ReferenceNumber, "TXN-") {
		t.Fatalf("reference number %q missing TXN- prefix", txn.ReferenceNumber)
	}
	assertStatus(t, ctx, app.ID, models.ApplicationStatusFundReleased)

	// Second release loses the conditional update.
	if _, err := workflow.ReleaseFunds(bankCtx, app.ID, bank.ID, &workflow.ReleaseInput{
		Amount:      sanctioned,
		Beneficiary: beneficiary,
	}); !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("double release: err = %v, want ErrorInvalidState", err)
	}
}

func mustCreateUser(t *testing.T, ctx context.Context, role, email string) *models.User {
	t.Helper()
	u, err := models.CreateUser(ctx, &models.NewUser{
		Name:     role + " user",
		Email:    email,
		Password: "integration-pw",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", role, err)
	}
	return u
}

func actorContext(ctx context.Context, u *models.User) context.Context {
	ctx = utils.SetUserIdInContext(ctx, u.ID)
	ctx = utils.SetUserRoleInContext(ctx, string(u.Role))
	ctx = utils.SetUserNameInContext(ctx, u.Name)
	return ctx
}

func mustGetApplication(t *testing.T, ctx context.Context, id int) *models.Application {
	t.Helper()
	app, err := models.GetApplication(ctx, id)
	if err != nil {
		t.Fatalf("GetApplication(%d): %v", id, err)
	}
	return app
}

func assertStatus(t *testing.T, ctx context.Context, applicationId int, want models.ApplicationStatus) {
	t.Helper()
	app := mustGetApplication(t, ctx, applicationId)
	if app.Status != want {
		t.Fatalf("application %d status = %s, want %s", applicationId, app.Status, want)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("hydropay-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("hydropay-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=hydropay_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
