package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/repository"
	"golang.org/x/sync/errgroup"
)

const testDim = 4

func newRecord(text string, vec []float32, createdAt time.Time) *model.Memory {
	return &model.Memory{
		ID:        model.NewMemoryID(),
		Text:      text,
		Embedding: vec,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// testMemoryRepository runs the behavior every backend must share
func testMemoryRepository(t *testing.T, repo repository.MemoryRepository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	// unique user ids keep runs against shared backends independent
	nsA := model.NewNamespace("user-a-" + uuid.NewString())
	nsB := model.NewNamespace("user-b-" + uuid.NewString())

	name := newRecord("Nama: Widya", []float32{1, 0, 0, 0}, base)
	addr := newRecord("Alamat: Jakarta Selatan", []float32{0, 1, 0, 0}, base.Add(time.Second))
	other := newRecord("Nama: Budi", []float32{1, 0, 0, 0}, base)

	gt.NoError(t, repo.PutMemory(ctx, nsA, name))
	gt.NoError(t, repo.PutMemory(ctx, nsA, addr))
	gt.NoError(t, repo.PutMemory(ctx, nsB, other))

	t.Run("list is ordered and scoped", func(t *testing.T) {
		memories, err := repo.ListMemories(ctx, nsA)
		gt.NoError(t, err)
		gt.A(t, memories).Length(2)
		gt.Equal(t, memories[0].ID, name.ID)
		gt.Equal(t, memories[0].Text, "Nama: Widya")
		gt.Equal(t, memories[1].ID, addr.ID)
	})

	t.Run("search ranks by similarity within namespace", func(t *testing.T) {
		memories, err := repo.SearchMemories(ctx, nsA, []float32{0, 1, 0, 0}, 1)
		gt.NoError(t, err)
		gt.A(t, memories).Length(1)
		gt.Equal(t, memories[0].ID, addr.ID)

		memories, err = repo.SearchMemories(ctx, nsA, []float32{1, 0, 0, 0}, 10)
		gt.NoError(t, err)
		gt.A(t, memories).Length(2)
		gt.Equal(t, memories[0].ID, name.ID)
		for _, m := range memories {
			gt.NotEqual(t, m.ID, other.ID)
		}
	})

	t.Run("get existing and missing", func(t *testing.T) {
		got, err := repo.GetMemory(ctx, nsA, name.ID)
		gt.NoError(t, err)
		gt.NotNil(t, got)
		gt.Equal(t, got.Text, name.Text)
		gt.True(t, got.CreatedAt.Equal(name.CreatedAt))

		got, err = repo.GetMemory(ctx, nsB, name.ID)
		gt.NoError(t, err)
		gt.Nil(t, got)
	})

	t.Run("put overwrites same id", func(t *testing.T) {
		updated := *addr
		updated.Text = "Alamat: Bekasi Selatan"
		updated.UpdatedAt = base.Add(time.Minute)
		gt.NoError(t, repo.PutMemory(ctx, nsA, &updated))

		memories, err := repo.ListMemories(ctx, nsA)
		gt.NoError(t, err)
		gt.A(t, memories).Length(2)
		gt.Equal(t, memories[1].Text, "Alamat: Bekasi Selatan")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		gt.NoError(t, repo.DeleteMemory(ctx, nsA, addr.ID))
		gt.NoError(t, repo.DeleteMemory(ctx, nsA, addr.ID))
		gt.NoError(t, repo.DeleteMemory(ctx, nsA, model.NewMemoryID()))

		memories, err := repo.ListMemories(ctx, nsA)
		gt.NoError(t, err)
		gt.A(t, memories).Length(1)
	})

	t.Run("delete namespace leaves others", func(t *testing.T) {
		n, err := repo.DeleteNamespace(ctx, nsA)
		gt.NoError(t, err)
		gt.Equal(t, n, 1)

		memories, err := repo.ListMemories(ctx, nsA)
		gt.NoError(t, err)
		gt.A(t, memories).Length(0)

		memories, err = repo.ListMemories(ctx, nsB)
		gt.NoError(t, err)
		gt.A(t, memories).Length(1)

		n, err = repo.DeleteNamespace(ctx, nsA)
		gt.NoError(t, err)
		gt.Equal(t, n, 0)
	})

	_, err := repo.DeleteNamespace(ctx, nsB)
	gt.NoError(t, err)
}

func TestMemoryRepository(t *testing.T) {
	testMemoryRepository(t, repository.NewMemory())
}

func TestChromemRepository(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		repo, err := repository.NewChromem("", testDim)
		gt.NoError(t, err)
		testMemoryRepository(t, repo)
	})

	t.Run("persistent", func(t *testing.T) {
		repo, err := repository.NewChromem(t.TempDir(), testDim)
		gt.NoError(t, err)
		testMemoryRepository(t, repo)
	})

	t.Run("rejects wrong dimension", func(t *testing.T) {
		repo, err := repository.NewChromem("", testDim)
		gt.NoError(t, err)

		err = repo.PutMemory(context.Background(), model.NewNamespace("u"), newRecord("x", []float32{1, 2}, time.Now()))
		gt.Error(t, err)
	})
}

func TestChromemListWhileDeleting(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.NewChromem("", testDim)
	gt.NoError(t, err)
	ns := model.NewNamespace("paralel")

	base := time.Now().UTC()
	records := make([]*model.Memory, 12)
	for i := range records {
		records[i] = newRecord("fakta", []float32{1, float32(i), 0, 0}, base.Add(time.Duration(i)*time.Second))
		gt.NoError(t, repo.PutMemory(ctx, ns, records[i]))
	}

	var eg errgroup.Group
	eg.Go(func() error {
		for _, rec := range records {
			if err := repo.DeleteMemory(ctx, ns, rec.ID); err != nil {
				return err
			}
		}
		return nil
	})
	for range 8 {
		eg.Go(func() error {
			for range 20 {
				if _, err := repo.ListMemories(ctx, ns); err != nil {
					return err
				}
			}
			return nil
		})
	}
	gt.NoError(t, eg.Wait())

	memories, err := repo.ListMemories(ctx, ns)
	gt.NoError(t, err)
	gt.A(t, memories).Length(0)
}

func TestChromemRepositoryReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ns := model.NewNamespace("reopen")

	repo, err := repository.NewChromem(dir, testDim)
	gt.NoError(t, err)
	rec := newRecord("Warna favorit: emas", []float32{0, 0, 1, 0}, time.Now())
	gt.NoError(t, repo.PutMemory(ctx, ns, rec))

	reopened, err := repository.NewChromem(dir, testDim)
	gt.NoError(t, err)
	memories, err := reopened.ListMemories(ctx, ns)
	gt.NoError(t, err)
	gt.A(t, memories).Length(1)
	gt.Equal(t, memories[0].Text, "Warna favorit: emas")
}

func TestFirestoreRepository(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	defer repo.Close()

	testMemoryRepository(t, repo)
}
