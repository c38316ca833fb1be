package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
	memorysvc "github.com/m-mizutani/sribot/pkg/memory"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/tool"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
)

const (
	GetUserContext    = "get_user_context"
	SaveImportantInfo = "save_important_info"
	AnalyzeAndSave    = "analyze_and_save_info"
	DeleteUserMemory  = "delete_user_memory"
	UpdateUserMemory  = "update_user_memory"
	ClearAllMemory    = "clear_all_user_memory"
	ListUserMemories  = "list_user_memories"
)

const noMemoryMessage = "Belum ada informasi yang tersimpan tentang user ini."

// Tool exposes the per-user memory store to the model. Failures are
// logged and returned as text so the model always gets an answer.
type Tool struct {
	svc    *memorysvc.Service
	gemini adapter.Gemini
}

var _ tool.Tool = (*Tool)(nil)

// New creates the memory tool. gemini is used by analyze_and_save_info
// only; when nil that function is not offered.
func New(svc *memorysvc.Service, gemini adapter.Gemini) *Tool {
	return &Tool{svc: svc, gemini: gemini}
}

func (t *Tool) Specs() []*tool.Spec {
	specs := []*tool.Spec{
		{
			Name:        GetUserContext,
			Description: "WAJIB DIPANGGIL PERTAMA di setiap conversation untuk mendapatkan konteks user yang tersimpan. Gunakan tool ini sebelum merespons user untuk mendapatkan informasi personal yang sudah diketahui sebelumnya.",
		},
		{
			Name:        SaveImportantInfo,
			Description: "Menyimpan informasi penting tentang user yang disebutkan dalam percakapan (nama, lokasi, preferensi, dll).",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"information": tool.String("Informasi tentang user yang akan disimpan", 1),
			}, "information"),
		},
		{
			Name:        DeleteUserMemory,
			Description: "Menghapus memori user berdasarkan potongan isi (misalnya \"alamat\") atau awalan ID memori.",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"memory_identifier": tool.String("Potongan isi atau ID memori yang akan dihapus", 1),
			}, "memory_identifier"),
		},
		{
			Name:        UpdateUserMemory,
			Description: "Mengupdate atau mengoreksi informasi user yang sudah tersimpan dengan mengganti old_info menjadi new_info.",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"old_info": tool.String("Teks lama yang akan diganti (case-sensitive)", 1),
				"new_info": tool.String("Teks pengganti", 0),
			}, "old_info", "new_info"),
		},
		{
			Name:        ClearAllMemory,
			Description: "Menghapus SEMUA memori user. Hanya gunakan jika user secara eksplisit meminta.",
		},
		{
			Name:        ListUserMemories,
			Description: "Menampilkan daftar lengkap memori user beserta ID dan waktu penyimpanan.",
		},
	}

	if t.gemini != nil {
		specs = append(specs, &tool.Spec{
			Name:        AnalyzeAndSave,
			Description: "Menganalisis pesan user dengan LLM untuk otomatis mendeteksi dan menyimpan informasi penting yang perlu diingat.",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"user_message": tool.String("Pesan user yang akan dianalisis", 1),
			}, "user_message"),
		})
	}

	return specs
}

func (t *Tool) Prompt(ctx context.Context) string {
	return `Memory tools menyimpan fakta tentang user saat ini. Panggil get_user_context di awal setiap percakapan.
- "Hapus alamat saya" → delete_user_memory dengan memory_identifier "alamat"
- "Update alamat Jakarta ke Bekasi" → update_user_memory dengan old_info "Jakarta", new_info "Bekasi"
- "Hapus semua data saya" → clear_all_user_memory (hanya jika user eksplisit minta)`
}

func (t *Tool) Run(ctx context.Context, name string, args map[string]any) (any, error) {
	userID := tool.UserID(ctx)
	if userID == "" {
		return nil, goerr.Wrap(model.ErrInvalidUserID, "user id is not bound to context", goerr.V("tool", name))
	}
	ns := model.NewNamespace(userID)
	logger := logging.From(ctx).With("tool", name, "user_id", userID)

	var (
		out string
		err error
	)
	switch name {
	case GetUserContext:
		out, err = t.getUserContext(ctx, ns)
	case SaveImportantInfo:
		var input struct {
			Information string `json:"information"`
		}
		if err := tool.Decode(args, &input); err != nil {
			return nil, err
		}
		out, err = t.save(ctx, ns, input.Information)
	case AnalyzeAndSave:
		var input struct {
			UserMessage string `json:"user_message"`
		}
		if err := tool.Decode(args, &input); err != nil {
			return nil, err
		}
		out, err = t.analyzeAndSave(ctx, ns, input.UserMessage)
	case DeleteUserMemory:
		var input struct {
			MemoryIdentifier string `json:"memory_identifier"`
		}
		if err := tool.Decode(args, &input); err != nil {
			return nil, err
		}
		out, err = t.delete(ctx, ns, input.MemoryIdentifier)
	case UpdateUserMemory:
		var input struct {
			OldInfo string `json:"old_info"`
			NewInfo string `json:"new_info"`
		}
		if err := tool.Decode(args, &input); err != nil {
			return nil, err
		}
		out, err = t.update(ctx, ns, input.OldInfo, input.NewInfo)
	case ClearAllMemory:
		out, err = t.clear(ctx, ns)
	case ListUserMemories:
		out, err = t.list(ctx, ns)
	default:
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown memory function", goerr.V("name", name))
	}

	if err != nil {
		logger.Error("memory operation failed", logging.ErrAttr(err))
		return fmt.Sprintf("Error memproses memori user: %s", strings.TrimSpace(errorSummary(err))), nil
	}
	logger.Debug("memory operation done")
	return out, nil
}

func errorSummary(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		return msg[:i]
	}
	return msg
}

func (t *Tool) getUserContext(ctx context.Context, ns model.Namespace) (string, error) {
	memories, err := t.svc.Search(ctx, ns, "", 0)
	if err != nil {
		return "", err
	}
	if len(memories) == 0 {
		return noMemoryMessage, nil
	}

	var b strings.Builder
	b.WriteString("Konteks yang tersimpan tentang user:\n")
	for i, mem := range memories {
		fmt.Fprintf(&b, "%d. %s [ID: %s]\n", i+1, mem.Text, mem.ID.Short())
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *Tool) save(ctx context.Context, ns model.Namespace, info string) (string, error) {
	if _, err := t.svc.Add(ctx, ns, info); err != nil {
		return "", err
	}
	return "✓ Informasi berhasil disimpan: " + info, nil
}

func (t *Tool) delete(ctx context.Context, ns model.Namespace, identifier string) (string, error) {
	result, err := t.svc.DeleteMatching(ctx, ns, identifier)
	if err != nil {
		return "", err
	}
	if result.Count == 0 {
		return fmt.Sprintf("Tidak ditemukan memori yang cocok dengan '%s'.", identifier), nil
	}
	return fmt.Sprintf("✓ Berhasil menghapus %d memori: %s", result.Count, strings.Join(result.Texts, "; ")), nil
}

func (t *Tool) update(ctx context.Context, ns model.Namespace, oldInfo, newInfo string) (string, error) {
	changes, err := t.svc.UpdateMatching(ctx, ns, oldInfo, newInfo)
	if err != nil {
		return "", err
	}
	if len(changes) == 0 {
		return fmt.Sprintf("Tidak ditemukan memori yang mengandung '%s'.", oldInfo), nil
	}

	pairs := make([]string, len(changes))
	for i, c := range changes {
		pairs[i] = fmt.Sprintf("'%s' → '%s'", c.Before, c.After)
	}
	return fmt.Sprintf("✓ Berhasil mengupdate %d memori: %s", len(changes), strings.Join(pairs, "; ")), nil
}

func (t *Tool) clear(ctx context.Context, ns model.Namespace) (string, error) {
	n, err := t.svc.ClearNamespace(ctx, ns)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return noMemoryMessage, nil
	}
	return fmt.Sprintf("✓ Berhasil menghapus semua memori user (%d memori).", n), nil
}

func (t *Tool) list(ctx context.Context, ns model.Namespace) (string, error) {
	memories, err := t.svc.ListAll(ctx, ns)
	if err != nil {
		return "", err
	}
	if len(memories) == 0 {
		return noMemoryMessage, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Daftar memori user (%d):\n", len(memories))
	for i, mem := range memories {
		fmt.Fprintf(&b, "%d. %s [ID: %s] (disimpan: %s)\n", i+1, mem.Text, mem.ID.Short(), mem.CreatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
