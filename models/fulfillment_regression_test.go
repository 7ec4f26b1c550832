package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/mmdatafocus/fulfillment_backend/workflow"
	"github.com/shopspring/decimal"
)

// End-to-end document lifecycle against a real MySQL + Redis pair:
// 10 ordered, fulfill 4, fulfill 6, then reject 1 more; a second line with a
// zero ordered qty must never block the close.
func TestFulfillmentLifecycleClosesAtOrderedQty(t *testing.T) {
	ctx := setupIntegration(t)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  "Lifecycle Co",
		Email: "orders@lifecycle.test",
		BillingAddress: &models.NewAddress{
			Attention: "Accounts",
			Address:   "1 Ledger St",
			City:      "Yangon",
		},
		ShippingAddress: &models.NewAddress{
			Address: "12 Dock Rd",
			City:    "Yangon",
		},
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	order, err := models.CreateFulfillmentOrder(ctx, &models.NewFulfillmentOrder{
		CustomerId:     customer.ID,
		DocumentFamily: models.DocumentFamilySales,
		OrderDate:      time.Now().UTC(),
		Details: []models.NewFulfillmentOrderDetail{
			{Name: "Widget", DetailQty: decimal.NewFromInt(10)},
			{Name: "Sample", DetailQty: decimal.Zero},
		},
	})
	if err != nil {
		t.Fatalf("CreateFulfillmentOrder: %v", err)
	}
	if order.CurrentStatus != models.FulfillmentOrderStatusDraft {
		t.Fatalf("new sales order status = %s, want Draft", order.CurrentStatus)
	}
	if !strings.HasPrefix(order.OrderNumber, "SO-") {
		t.Fatalf("order number %q, want SO- prefix", order.OrderNumber)
	}
	widgetId := order.Details[0].ID

	// Draft documents refuse postings until confirmed.
	_, err = workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
		[]workflow.FulfillmentEntry{{DetailId: widgetId, Qty: decimal.NewFromInt(1)}}, nil)
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("posting against Draft = %v, want ErrorInvalidState", err)
	}

	if _, err := workflow.Confirm(ctx, order.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	result, err := workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
		[]workflow.FulfillmentEntry{{DetailId: widgetId, Qty: decimal.NewFromInt(4)}}, nil)
	if err != nil {
		t.Fatalf("fulfill 4: %v", err)
	}
	if result.Status != models.FulfillmentOrderStatusPartiallyInvoiced {
		t.Fatalf("after 4/10 status = %s, want Partially Invoiced", result.Status)
	}

	result, err = workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
		[]workflow.FulfillmentEntry{{DetailId: widgetId, Qty: decimal.NewFromInt(6)}}, nil)
	if err != nil {
		t.Fatalf("fulfill 6: %v", err)
	}
	if result.Status != models.FulfillmentOrderStatusClosed {
		t.Fatalf("after 10/10 status = %s, want Closed", result.Status)
	}

	// Closed means immutable to further fulfillments.
	_, err = workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
		[]workflow.FulfillmentEntry{{DetailId: widgetId, Qty: decimal.NewFromInt(1)}}, nil)
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("posting against Closed = %v, want ErrorInvalidState", err)
	}

	// Summaries are a pure refold of the ledger and must agree with the
	// last posting result.
	summaries, err := workflow.GetSummaries(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetSummaries: %v", err)
	}
	if summaries.Status != models.FulfillmentOrderStatusClosed {
		t.Fatalf("refolded status = %s, want Closed", summaries.Status)
	}
	for _, s := range summaries.Summaries {
		if !s.FulfilledQty.Add(s.RemainingQty).Equal(s.OrderedQty) {
			t.Errorf("line %d: fulfilled %s + remaining %s != ordered %s", s.DetailId, s.FulfilledQty, s.RemainingQty, s.OrderedQty)
		}
	}

	// Events carry the resolved address snapshots.
	events, err := models.GetFulfillmentEvents(ctx, order.ID, &widgetId)
	if err != nil {
		t.Fatalf("GetFulfillmentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events on widget line, want 2", len(events))
	}
	if events[0].ShippingAddress == "" {
		t.Error("event shipping snapshot empty, want customer default")
	}
}

// A correction reopens a closed document and the refold agrees.
func TestCorrectionReopensClosedOrder(t *testing.T) {
	ctx := setupIntegration(t)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Correction Co"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	order, err := models.CreateFulfillmentOrder(ctx, &models.NewFulfillmentOrder{
		CustomerId:     customer.ID,
		DocumentFamily: models.DocumentFamilyRental,
		OrderDate:      time.Now().UTC(),
		Details: []models.NewFulfillmentOrderDetail{
			{Name: "Scaffold Set", DetailQty: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("CreateFulfillmentOrder: %v", err)
	}
	// Rental documents skip Draft entirely.
	if order.CurrentStatus != models.FulfillmentOrderStatusConfirmed {
		t.Fatalf("new rental order status = %s, want Confirmed", order.CurrentStatus)
	}
	if !strings.HasPrefix(order.OrderNumber, "RO-") {
		t.Fatalf("order number %q, want RO- prefix", order.OrderNumber)
	}
	lineId := order.Details[0].ID

	result, err := workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeReceipt,
		[]workflow.FulfillmentEntry{{DetailId: lineId, Qty: decimal.NewFromInt(5)}}, nil)
	if err != nil {
		t.Fatalf("receive 5: %v", err)
	}
	if result.Status != models.FulfillmentOrderStatusReturned {
		t.Fatalf("after 5/5 status = %s, want Returned", result.Status)
	}

	// One unit was logged in error; compensate it.
	result, err = workflow.CorrectFulfillment(ctx, order.ID,
		[]workflow.FulfillmentEntry{{DetailId: lineId, Qty: decimal.NewFromInt(-1)}}, "double-scanned unit")
	if err != nil {
		t.Fatalf("CorrectFulfillment: %v", err)
	}
	if result.Status != models.FulfillmentOrderStatusPartiallyReturned {
		t.Fatalf("after correction status = %s, want Partially Returned", result.Status)
	}

	// The original event is untouched; the ledger now holds both.
	events, err := models.GetFulfillmentEvents(ctx, order.ID, nil)
	if err != nil {
		t.Fatalf("GetFulfillmentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want the original plus the correction", len(events))
	}
	if events[1].EventType != models.FulfillmentEventTypeCorrection {
		t.Fatalf("second event type = %s, want Correction", events[1].EventType)
	}

	// Correcting below zero fulfilled is refused.
	_, err = workflow.CorrectFulfillment(ctx, order.ID,
		[]workflow.FulfillmentEntry{{DetailId: lineId, Qty: decimal.NewFromInt(-5)}}, "bad idea")
	if !errors.Is(err, utils.ErrorInvalidInput) {
		t.Fatalf("correction below zero = %v, want ErrorInvalidInput", err)
	}
}

// Concurrent postings against one document serialize on the posting locks;
// whatever interleaving wins, the fulfilled total never exceeds ordered.
func TestConcurrentPostingsNeverOverFulfill(t *testing.T) {
	ctx := setupIntegration(t)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Race Co"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	order, err := models.CreateFulfillmentOrder(ctx, &models.NewFulfillmentOrder{
		CustomerId:     customer.ID,
		DocumentFamily: models.DocumentFamilySales,
		OrderDate:      time.Now().UTC(),
		Details: []models.NewFulfillmentOrderDetail{
			{Name: "Widget", DetailQty: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateFulfillmentOrder: %v", err)
	}
	if _, err := workflow.Confirm(ctx, order.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	lineId := order.Details[0].ID

	// 15 workers each try to post 1 unit against an ordered qty of 10.
	const workers = 15
	var wg sync.WaitGroup
	var succeeded int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
				[]workflow.FulfillmentEntry{{DetailId: lineId, Qty: decimal.NewFromInt(1)}}, nil)
			if err == nil {
				atomic.AddInt64(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	summaries, err := workflow.GetSummaries(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetSummaries: %v", err)
	}
	fulfilled := summaries.Summaries[0].FulfilledQty
	if fulfilled.GreaterThan(decimal.NewFromInt(10)) {
		t.Fatalf("fulfilled %s exceeds ordered 10", fulfilled)
	}
	if !fulfilled.Equal(decimal.NewFromInt(succeeded)) {
		t.Fatalf("fulfilled %s != %d successful postings", fulfilled, succeeded)
	}
}

// Advisory posting locks are connection-scoped and survive commit, so every
// posting must hand its lock back while its transaction is still open. A
// leaked lock stays with the pooled connection and stalls the next posting
// on the same document for the full GET_LOCK timeout.
func TestPostingLockFreedBetweenPostings(t *testing.T) {
	ctx := setupIntegration(t)

	db := config.GetDB()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// Keep several live connections so consecutive postings do not have to
	// land on the session that held the previous lock.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(4)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Serial Co"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	order, err := models.CreateFulfillmentOrder(ctx, &models.NewFulfillmentOrder{
		CustomerId:     customer.ID,
		DocumentFamily: models.DocumentFamilySales,
		OrderDate:      time.Now().UTC(),
		Details: []models.NewFulfillmentOrderDetail{
			{Name: "Widget", DetailQty: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateFulfillmentOrder: %v", err)
	}
	lineId := order.Details[0].ID

	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	lockName := fmt.Sprintf("fulfillment:%s:%d", businessId, order.ID)
	assertLockFree := func(stage string) {
		t.Helper()
		var free int
		if err := db.Raw("SELECT IS_FREE_LOCK(?)", lockName).Scan(&free).Error; err != nil {
			t.Fatalf("%s: IS_FREE_LOCK: %v", stage, err)
		}
		if free != 1 {
			t.Fatalf("%s: posting lock %q still held by a pooled connection", stage, lockName)
		}
	}

	if _, err := workflow.Confirm(ctx, order.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	assertLockFree("after Confirm")

	if _, err := workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
		[]workflow.FulfillmentEntry{{DetailId: lineId, Qty: decimal.NewFromInt(4)}}, nil); err != nil {
		t.Fatalf("fulfill 4: %v", err)
	}
	assertLockFree("after first posting")

	// The second posting must not sit out a GET_LOCK timeout behind the
	// first posting's connection.
	start := time.Now()
	result, err := workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
		[]workflow.FulfillmentEntry{{DetailId: lineId, Qty: decimal.NewFromInt(6)}}, nil)
	if err != nil {
		t.Fatalf("fulfill 6: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("second posting took %s, it waited on a stale advisory lock", elapsed)
	}
	if result.Status != models.FulfillmentOrderStatusClosed {
		t.Fatalf("after 10/10 status = %s, want Closed", result.Status)
	}
	assertLockFree("after second posting")

	// Rejected postings roll back; they must release the lock too.
	_, err = workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
		[]workflow.FulfillmentEntry{{DetailId: lineId, Qty: decimal.NewFromInt(1)}}, nil)
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("posting against Closed = %v, want ErrorInvalidState", err)
	}
	assertLockFree("after rejected posting")
}

// A drifted stored status is repaired from ledger history; the repair
// re-derives under the posting row lock so it cannot clobber a live posting.
func TestStatusRebuildRepairsDrift(t *testing.T) {
	ctx := setupIntegration(t)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Drift Co"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	order, err := models.CreateFulfillmentOrder(ctx, &models.NewFulfillmentOrder{
		CustomerId:     customer.ID,
		DocumentFamily: models.DocumentFamilySales,
		OrderDate:      time.Now().UTC(),
		Details: []models.NewFulfillmentOrderDetail{
			{Name: "Widget", DetailQty: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateFulfillmentOrder: %v", err)
	}
	if _, err := workflow.Confirm(ctx, order.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	lineId := order.Details[0].ID
	if _, err := workflow.RecordFulfillment(ctx, order.ID, models.FulfillmentEventTypeDelivery,
		[]workflow.FulfillmentEntry{{DetailId: lineId, Qty: decimal.NewFromInt(4)}}, nil); err != nil {
		t.Fatalf("fulfill 4: %v", err)
	}

	// Corrupt the stored status behind the engine's back.
	db := config.GetDB()
	if err := db.Model(&models.FulfillmentOrder{}).
		Where("id = ?", order.ID).
		Update("current_status", models.FulfillmentOrderStatusClosed).Error; err != nil {
		t.Fatalf("corrupt status: %v", err)
	}

	stale, err := models.GetFulfillmentOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetFulfillmentOrder: %v", err)
	}
	result, err := workflow.RebuildStatus(ctx, stale, true)
	if err != nil {
		t.Fatalf("RebuildStatus: %v", err)
	}
	if !result.Drifted {
		t.Fatal("drift not detected")
	}
	if result.Derived != models.FulfillmentOrderStatusPartiallyInvoiced {
		t.Fatalf("derived status = %s, want Partially Invoiced", result.Derived)
	}

	repaired, err := models.GetFulfillmentOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetFulfillmentOrder: %v", err)
	}
	if repaired.CurrentStatus != models.FulfillmentOrderStatusPartiallyInvoiced {
		t.Fatalf("stored status = %s, want Partially Invoiced", repaired.CurrentStatus)
	}
}

// setupIntegration boots MySQL + Redis containers, connects, migrates, and
// returns a context carrying a fresh business and user identity.
func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "fulfillment_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, uuid.NewString())
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	return ctx
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("fulfillment-test-redis-%d", time.Now().UnixNano())
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
	name := fmt.Sprintf("fulfillment-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=fulfillment_test",
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
