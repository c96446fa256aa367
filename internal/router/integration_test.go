//go:build integration

package router_test

// Full-stack tests over real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/eduardojeem/Mipos-sub008/internal/config"
	"github.com/eduardojeem/Mipos-sub008/internal/infra"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"
	"github.com/eduardojeem/Mipos-sub008/internal/router"
	"github.com/eduardojeem/Mipos-sub008/internal/service"
	"github.com/eduardojeem/Mipos-sub008/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

type pgEnv struct {
	*testEnv
	db *gorm.DB
}

func setupPostgresEnv(t *testing.T) *pgEnv {
	t.Helper()
	ctx := context.Background()
	gin.SetMode(gin.TestMode)

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("pos_test"),
		tcPostgres.WithUsername("pos"),
		tcPostgres.WithPassword("pos"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                          "test",
		JWTSecret:                    secret,
		DatabaseURL:                  pgURL,
		RedisURL:                     rdURL,
		CORSOrigins:                  []string{"*"},
		RateLimitPerMinute:           10000,
		DiscountReasonThresholdPct:   10,
		DiscountOverrideThresholdPct: 20,
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	svcs := router.NewServices(cfg, repository.NewSet(db), worker.NewDispatcher(rdb))
	return &pgEnv{
		testEnv: &testEnv{engine: router.New(cfg, svcs, db, rdb), org: uuid.New()},
		db:      db,
	}
}

func TestPostgres_HealthReportsDependencies(t *testing.T) {
	env := setupPostgresEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decodeJSON(t, w, &body)
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "connected", body["redis"])
	assert.Contains(t, body, "loyalty_retry")
}

func TestPostgres_ConcurrentSalesNeverOversell(t *testing.T) {
	env := setupPostgresEnv(t)
	admin := env.token(t, service.RoleAdmin)
	cashier := env.token(t, service.RoleCashier)

	var product struct{ ID string }
	w := env.do(t, http.MethodPost, "/v1/products", map[string]any{
		"name": "Rice", "sku": "RICE", "sale_price": "10.00", "tax_rate": "0", "stock_quantity": 5,
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &product)

	const n = 12
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(t, http.MethodPost, "/v1/sales", map[string]any{
				"items":          []map[string]any{{"product_id": product.ID, "quantity": 1}},
				"payment_method": "CARD",
			}, cashier)
			mu.Lock()
			codes[w.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, codes[http.StatusCreated])
	assert.Equal(t, n-5, codes[http.StatusConflict])

	var stock int
	require.NoError(t, env.db.Raw("SELECT stock_quantity FROM products WHERE id = ?", product.ID).Scan(&stock).Error)
	assert.Equal(t, 0, stock)

	var movements int64
	require.NoError(t, env.db.Table("inventory_movements").Where("product_id = ?", product.ID).Count(&movements).Error)
	assert.Equal(t, int64(5), movements)
}

func TestPostgres_OneOpenSessionPerOrganization(t *testing.T) {
	env := setupPostgresEnv(t)
	cashier := env.token(t, service.RoleCashier)

	w := env.do(t, http.MethodPost, "/v1/cash/sessions", map[string]any{"opening_amount": "50"}, cashier)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/v1/cash/sessions", map[string]any{"opening_amount": "50"}, cashier)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostgres_EnrollAndRedeem(t *testing.T) {
	env := setupPostgresEnv(t)
	admin := env.token(t, service.RoleAdmin)
	cashier := env.token(t, service.RoleCashier)

	var customer struct{ ID string }
	w := env.do(t, http.MethodPost, "/v1/customers", map[string]any{"name": "Luis"}, cashier)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &customer)

	var program struct{ ID string }
	w = env.do(t, http.MethodPost, "/v1/loyalty/programs", map[string]any{
		"name": "Club", "points_per_purchase": "1", "minimum_purchase": "0", "welcome_bonus": 100,
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &program)

	var enrollment struct {
		ID            string `json:"id"`
		CurrentPoints int64  `json:"current_points"`
	}
	w = env.do(t, http.MethodPost, "/v1/loyalty/enrollments", map[string]any{
		"customer_id": customer.ID, "program_id": program.ID,
	}, cashier)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &enrollment)
	require.Equal(t, int64(100), enrollment.CurrentPoints)

	var reward struct{ ID string }
	w = env.do(t, http.MethodPost, "/v1/rewards", map[string]any{
		"program_id": program.ID, "name": "Free coffee", "points_cost": 80,
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &reward)

	redeem := map[string]any{"customer_id": customer.ID, "program_id": program.ID, "reward_id": reward.ID}
	w = env.do(t, http.MethodPost, "/v1/rewards/redeem", redeem, cashier)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/v1/rewards/redeem", redeem, cashier)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "20 points left")

	w = env.do(t, http.MethodGet, "/v1/loyalty/enrollments/"+enrollment.ID, nil, cashier)
	require.Equal(t, http.StatusOK, w.Code)
	decodeJSON(t, w, &enrollment)
	assert.Equal(t, int64(20), enrollment.CurrentPoints)
}

func TestPostgres_CustomerRewardUsedOnce(t *testing.T) {
	env := setupPostgresEnv(t)
	admin := env.token(t, service.RoleAdmin)
	cashier := env.token(t, service.RoleCashier)

	var product struct{ ID string }
	w := env.do(t, http.MethodPost, "/v1/products", map[string]any{
		"name": "Bread", "sku": "BREAD", "sale_price": "2.00", "tax_rate": "0", "stock_quantity": 20,
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &product)

	var customer, program, reward, redeemed struct{ ID string }
	w = env.do(t, http.MethodPost, "/v1/customers", map[string]any{"name": "Eva"}, cashier)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &customer)
	w = env.do(t, http.MethodPost, "/v1/loyalty/programs", map[string]any{
		"name": "Club", "points_per_purchase": "1", "minimum_purchase": "0", "welcome_bonus": 50,
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &program)
	w = env.do(t, http.MethodPost, "/v1/loyalty/enrollments", map[string]any{"customer_id": customer.ID, "program_id": program.ID}, cashier)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, "/v1/rewards", map[string]any{"program_id": program.ID, "name": "Croissant", "points_cost": 10}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &reward)
	w = env.do(t, http.MethodPost, "/v1/rewards/redeem", map[string]any{
		"customer_id": customer.ID, "program_id": program.ID, "reward_id": reward.ID,
	}, cashier)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeJSON(t, w, &redeemed)

	const n = 8
	sales := make([]string, n)
	for i := range sales {
		var created struct {
			Sale struct{ ID string } `json:"sale"`
		}
		w = env.do(t, http.MethodPost, "/v1/sales", map[string]any{
			"items":          []map[string]any{{"product_id": product.ID, "quantity": 1}},
			"payment_method": "CARD",
		}, cashier)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		decodeJSON(t, w, &created)
		sales[i] = created.Sale.ID
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for _, saleID := range sales {
		wg.Add(1)
		go func(saleID string) {
			defer wg.Done()
			w := env.do(t, http.MethodPost, "/v1/customer-rewards/"+redeemed.ID+"/use", map[string]any{"sale_id": saleID}, cashier)
			mu.Lock()
			codes[w.Code]++
			mu.Unlock()
		}(saleID)
	}
	wg.Wait()

	assert.Equal(t, 1, codes[http.StatusOK])
	assert.Equal(t, n-1, codes[http.StatusConflict]+codes[http.StatusUnprocessableEntity])
}
