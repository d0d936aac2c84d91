package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/wishly/internal/config"
	"github.com/iliyamo/wishly/internal/database"
	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/repository"
	"github.com/iliyamo/wishly/pkg/logger"
)

var testDB *sql.DB

// TestMain starts a MySQL container when WISHLY_INTEGRATION=1.  Set
// TEST_MYSQL_DSN to run against an existing server instead.  Without
// either, the tests in this file skip.
func TestMain(m *testing.M) {
	if os.Getenv("WISHLY_INTEGRATION") != "1" {
		os.Exit(m.Run())
	}
	ctx := context.Background()

	var ctr *mysql.MySQLContainer
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		var err error
		ctr, err = mysql.Run(ctx, "mysql:8.0",
			mysql.WithDatabase("wishly_test"),
			mysql.WithUsername("wishly"),
			mysql.WithPassword("wishly"),
		)
		if err != nil {
			fmt.Printf("Failed to start MySQL container: %v\n", err)
			os.Exit(1)
		}
		dsn, err = ctr.ConnectionString(ctx, "parseTime=true", "loc=UTC", "clientFoundRows=true")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			_ = testcontainers.TerminateContainer(ctr)
			os.Exit(1)
		}
	}

	db, err := database.OpenDSN(ctx, dsn,
		config.DBConfig{MaxOpenConns: 25, ConnectTimeout: time.Minute},
		logrus.NewEntry(logger.Discard()))
	if err == nil {
		err = database.Migrate(db, logger.Discard())
	}
	if err != nil {
		fmt.Printf("Failed to prepare database: %v\n", err)
		if ctr != nil {
			_ = testcontainers.TerminateContainer(ctr)
		}
		os.Exit(1)
	}
	testDB = db

	code := m.Run()

	_ = db.Close()
	if ctr != nil {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			fmt.Printf("Failed to terminate MySQL container: %v\n", err)
		}
	}
	os.Exit(code)
}

type seeded struct {
	ownerID  string
	wishlist model.Wishlist
	lamp     model.Item
	bike     model.Item
}

func seed(t *testing.T, bikePrice model.Cents) seeded {
	t.Helper()
	if testDB == nil {
		t.Skip("set WISHLY_INTEGRATION=1 to run MySQL tests")
	}
	ctx := context.Background()

	ownerID, err := repository.NewUserRepo(testDB).Create(ctx, uuid.NewString()+"@example.com", "x", nil)
	require.NoError(t, err)

	w := model.Wishlist{OwnerID: ownerID, Title: "Birthday", ShareToken: uuid.NewString(), IsActive: true}
	require.NoError(t, repository.NewWishlistRepo(testDB).Create(ctx, &w))

	items := repository.NewItemRepo(testDB)
	lampPrice := model.Cents(4500)
	lamp := model.Item{WishlistID: w.ID, Name: "Lamp", Price: &lampPrice}
	require.NoError(t, items.Create(ctx, &lamp))
	bike := model.Item{WishlistID: w.ID, Name: "Bike", Price: &bikePrice, IsGroupGift: true}
	require.NoError(t, items.Create(ctx, &bike))

	return seeded{ownerID: ownerID, wishlist: w, lamp: lamp, bike: bike}
}

func TestMySQL_ConcurrentReserveHasOneWinner(t *testing.T) {
	s := seed(t, 10000)
	repo := repository.NewReservationRepo(testDB)

	const guests = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		lost    int
		unknown []error
	)
	for i := 0; i < guests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(context.Background(), &model.Reservation{
				ItemID: s.lamp.ID, GuestIdentifier: fmt.Sprintf("guest-%d", i), GuestName: fmt.Sprintf("Guest %d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, repository.ErrAlreadyReserved):
				lost++
			default:
				unknown = append(unknown, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, unknown)
	assert.Equal(t, 1, won)
	assert.Equal(t, guests-1, lost)
}

func TestMySQL_ReserveRules(t *testing.T) {
	s := seed(t, 10000)
	ctx := context.Background()
	repo := repository.NewReservationRepo(testDB)

	err := repo.Create(ctx, &model.Reservation{ItemID: s.bike.ID, GuestIdentifier: "g", GuestName: "G"})
	assert.ErrorIs(t, err, repository.ErrGroupGiftNotReservable)

	err = repo.Create(ctx, &model.Reservation{ItemID: uuid.NewString(), GuestIdentifier: "g", GuestName: "G"})
	assert.ErrorIs(t, err, repository.ErrItemNotFound)

	res := model.Reservation{ItemID: s.lamp.ID, GuestIdentifier: "alice", GuestName: "Alice"}
	require.NoError(t, repo.Create(ctx, &res))

	_, _, err = repo.DeleteForGuest(ctx, res.ID, "mallory")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	got, wid, err := repo.DeleteForGuest(ctx, res.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, s.lamp.ID, got.ItemID)
	assert.Equal(t, s.wishlist.ID, wid)

	_, _, err = repo.DeleteForGuest(ctx, res.ID, "alice")
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)

	w := s.wishlist
	w.IsActive = false
	require.NoError(t, repository.NewWishlistRepo(testDB).Update(ctx, &w))
	err = repo.Create(ctx, &model.Reservation{ItemID: s.lamp.ID, GuestIdentifier: "bob", GuestName: "Bob"})
	assert.ErrorIs(t, err, repository.ErrWishlistInactive)
}

func TestMySQL_ConcurrentContributionsNeverOvershoot(t *testing.T) {
	s := seed(t, 10000)
	repo := repository.NewContributionRepo(testDB)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		funded  int
		unknown []error
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_, err := repo.CreateClamped(ctx, &model.Contribution{
				ItemID: s.bike.ID, Amount: 1500, GuestIdentifier: fmt.Sprintf("guest-%d", i), GuestName: "G",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
			case errors.Is(err, repository.ErrFullyFunded):
				funded++
			default:
				unknown = append(unknown, err)
			}
		}(i)
	}
	wg.Wait()
	require.Empty(t, unknown)

	st, err := repository.NewWishlistRepo(testDB).LoadState(context.Background(), s.wishlist.ID)
	require.NoError(t, err)
	var total model.Cents
	for _, c := range st.Contributions {
		total += c.Amount
	}
	// Six full pledges, one clamped to 1000, the rest rejected.
	assert.Equal(t, model.Cents(10000), total)
	assert.Len(t, st.Contributions, 7)
	assert.Equal(t, 13, funded)
}

func TestMySQL_DeleteWishlistCascades(t *testing.T) {
	s := seed(t, 10000)
	ctx := context.Background()

	require.NoError(t, repository.NewReservationRepo(testDB).Create(ctx,
		&model.Reservation{ItemID: s.lamp.ID, GuestIdentifier: "g", GuestName: "G"}))
	_, err := repository.NewContributionRepo(testDB).CreateClamped(ctx,
		&model.Contribution{ItemID: s.bike.ID, Amount: 500, GuestIdentifier: "g", GuestName: "G"})
	require.NoError(t, err)

	wishlists := repository.NewWishlistRepo(testDB)
	require.NoError(t, wishlists.Delete(ctx, s.wishlist.ID))

	_, err = wishlists.GetByID(ctx, s.wishlist.ID)
	assert.ErrorIs(t, err, repository.ErrWishlistNotFound)

	var n int
	require.NoError(t, testDB.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM reservations WHERE item_id = ?) + (SELECT COUNT(*) FROM contributions WHERE item_id = ?)`,
		s.lamp.ID, s.bike.ID).Scan(&n))
	assert.Zero(t, n)
}

func TestMySQL_ReorderAndItemRules(t *testing.T) {
	s := seed(t, 10000)
	ctx := context.Background()
	items := repository.NewItemRepo(testDB)

	require.NoError(t, items.Reorder(ctx, s.wishlist.ID, []string{s.bike.ID, s.lamp.ID}))
	st, err := repository.NewWishlistRepo(testDB).LoadState(ctx, s.wishlist.ID)
	require.NoError(t, err)
	require.Len(t, st.Items, 2)
	assert.Equal(t, s.bike.ID, st.Items[0].ID)

	err = items.Reorder(ctx, s.wishlist.ID, []string{s.bike.ID})
	assert.ErrorIs(t, err, repository.ErrInvalidOrder)

	_, err = repository.NewContributionRepo(testDB).CreateClamped(ctx,
		&model.Contribution{ItemID: s.bike.ID, Amount: 6000, GuestIdentifier: "g", GuestName: "G"})
	require.NoError(t, err)

	bike := s.bike
	lower := model.Cents(5000)
	bike.Price = &lower
	assert.ErrorIs(t, items.Update(ctx, &bike), repository.ErrPriceBelowTotal)

	bike = s.bike
	bike.IsGroupGift = false
	err = items.Update(ctx, &bike)
	assert.ErrorIs(t, err, repository.ErrGroupGiftLocked)
	assert.ErrorIs(t, err, repository.ErrConflict)
}
