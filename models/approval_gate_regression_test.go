package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
)

// Registration must stay locked until an administrator approves it, and a
// rejection must kill live sessions, not just future sign-ins.
func TestApprovalGateControlsSignInAndSessions(t *testing.T) {
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
	t.Setenv("DB_NAME", "invoices_test")
	// No topic means the outbox dispatcher is dormant; entries stay PENDING.
	t.Setenv("AUDIT_TOPIC", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	const email = "jane.doe@example.com"
	const password = "s3cret-enough"

	user, err := models.Register(ctx, email, password, password)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "jane.doe" {
		t.Fatalf("expected username derived from local part, got %q", user.Username)
	}
	if user.IsActive == nil || *user.IsActive {
		t.Fatalf("registered user must start inactive")
	}

	// Same email again must be refused.
	if _, err := models.Register(ctx, "JANE.DOE@example.com", password, password); !utils.IsValidationError(err) {
		t.Fatalf("duplicate email: expected validation error, got %v", err)
	}

	// Same local part on a different email gets a numeric suffix.
	other, err := models.Register(ctx, "jane.doe@other.example", password, password)
	if err != nil {
		t.Fatalf("Register(other): %v", err)
	}
	if other.Username != "jane.doe1" {
		t.Fatalf("expected suffixed username, got %q", other.Username)
	}

	// Pending account cannot sign in.
	if _, err := models.Login(ctx, email, password); !utils.IsAuthError(err) {
		t.Fatalf("pending login: expected auth error, got %v", err)
	}

	var profile models.Profile
	if err := db.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if profile.ApprovalStatus != models.ApprovalStatusPending {
		t.Fatalf("expected PENDING profile, got %s", profile.ApprovalStatus)
	}

	// Approve, sign in twice.
	if _, err := models.SetApprovalStatus(ctx, profile.ID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("SetApprovalStatus(APPROVED): %v", err)
	}
	first, err := models.Login(ctx, email, password)
	if err != nil {
		t.Fatalf("approved login: %v", err)
	}
	if first.Token == "" {
		t.Fatalf("expected a session token")
	}
	if _, err := models.Login(ctx, email, password); err != nil {
		t.Fatalf("second login: %v", err)
	}

	sessions, err := config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		t.Fatalf("read session set: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 live sessions, got %d", len(sessions))
	}

	// Reject: future sign-ins blocked with the rejected flag, live sessions gone.
	if _, err := models.SetApprovalStatus(ctx, profile.ID, models.ApprovalStatusRejected); err != nil {
		t.Fatalf("SetApprovalStatus(REJECTED): %v", err)
	}
	_, err = models.Login(ctx, email, password)
	authErr, ok := err.(*utils.AuthError)
	if !ok {
		t.Fatalf("rejected login: expected auth error, got %v", err)
	}
	if !authErr.Rejected {
		t.Fatalf("rejected login must carry the rejected flag")
	}

	sessions, err = config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		t.Fatalf("read session set after reject: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected all sessions revoked, %d left", len(sessions))
	}

	// Any transition is allowed; a later approval reopens the account.
	if _, err := models.SetApprovalStatus(ctx, profile.ID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("SetApprovalStatus(APPROVED again): %v", err)
	}
	if _, err := models.Login(ctx, email, password); err != nil {
		t.Fatalf("re-approved login: %v", err)
	}

	// Pending profiles sort ahead of decided ones.
	profiles, err := models.ListProfiles(ctx, "")
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].ApprovalStatus != models.ApprovalStatusPending {
		t.Fatalf("expected pending profile first, got %s", profiles[0].ApprovalStatus)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("invoices-test-redis-%d", time.Now().UnixNano())
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
	name := fmt.Sprintf("invoices-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=invoices_test",
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
