package chat_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/usecase/chat"
	"google.golang.org/genai"
)

func toolResult(name, output string) *genai.Content {
	return &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{{
			FunctionResponse: &genai.FunctionResponse{Name: name, Response: map[string]any{"output": output}},
		}},
	}
}

func TestExtractEnvelope(t *testing.T) {
	result := chat.Extract([]*genai.Content{
		genai.NewContentFromText("cari songket", genai.RoleUser),
		toolResult("search_product_by_name", `{"status":"success","data":[{"product_name":"Songket A","product_image":"http://x/a.png"}],"count":1}`),
		genai.NewContentFromText("Ini produknya.", genai.RoleModel),
	})

	gt.Equal(t, result.Reply, "Ini produknya.")
	gt.Equal(t, result.Data, any([]any{
		map[string]any{"product_name": "Songket A", "product_image": "http://x/a.png"},
	}))
	gt.Equal(t, result.Images, []string{"http://x/a.png"})
}

func TestExtractBareArray(t *testing.T) {
	result := chat.Extract([]*genai.Content{
		toolResult("legacy", `[{"umkm_name":"Zainal","umkm_image":"http://x/z.jpg"},{"umkm_name":"Ipah","umkm_image":""}]`),
		genai.NewContentFromText("Dua UMKM.", genai.RoleModel),
	})

	wrapped, ok := result.Data.(map[string]any)
	gt.True(t, ok)
	gt.Equal(t, wrapped["status"], any("success"))
	gt.Equal(t, wrapped["count"], any(2))
	list, ok := wrapped["data"].([]any)
	gt.True(t, ok)
	gt.A(t, list).Length(2)
	gt.Equal(t, result.Images, []string{"http://x/z.jpg"})
}

func TestExtractLatestPayloadWins(t *testing.T) {
	result := chat.Extract([]*genai.Content{
		toolResult("get_umkm_by_id", `{"status":"success","data":{"umkm_id":1,"umkm_image":"http://x/1.jpg"}}`),
		toolResult("get_umkm_by_id", `{"status":"success","data":{"umkm_id":2,"umkm_image":"http://x/2.jpg"}}`),
		genai.NewContentFromText("ok", genai.RoleModel),
	})

	data, ok := result.Data.(map[string]any)
	gt.True(t, ok)
	gt.Equal(t, data["umkm_id"], any(float64(2)))
	gt.Equal(t, result.Images, []string{"http://x/1.jpg", "http://x/2.jpg"})
}

func TestExtractNestedImagesInOrder(t *testing.T) {
	result := chat.Extract([]*genai.Content{
		toolResult("get_products_by_umkm", `{"status":"success","data":{"umkm":{"umkm_image":"http://x/u.jpg"},"products":[{"product_image":"http://x/p1.png"},{"product_image":"http://x/p2.png"},{"product_image":"http://x/p1.png"}]}}`),
	})

	gt.Equal(t, result.Images, []string{"http://x/p1.png", "http://x/p2.png", "http://x/u.jpg"})
}

func TestExtractURLsFromText(t *testing.T) {
	result := chat.Extract([]*genai.Content{
		genai.NewContentFromText("Lihat https://cdn.example.com/songket.JPG, juga http://x/b.png?size=large dan https://example.com/page.html.", genai.RoleModel),
		genai.NewContentFromText("Gambar lagi: https://cdn.example.com/songket.JPG", genai.RoleModel),
	})

	gt.Nil(t, result.Data)
	gt.Equal(t, result.Images, []string{"https://cdn.example.com/songket.JPG", "http://x/b.png?size=large"})
	gt.Equal(t, result.Reply, "Gambar lagi: https://cdn.example.com/songket.JPG")
}

func TestExtractIgnoresNonEnvelopes(t *testing.T) {
	result := chat.Extract([]*genai.Content{
		toolResult("get_umkm_by_id", `{"status":"error","message":"UMKM tidak ditemukan"}`),
		toolResult("get_current_time", "2024-08-17 10:00:00 WIB"),
	})

	gt.Nil(t, result.Data)
	gt.A(t, result.Images).Length(0)
	gt.Equal(t, result.Reply, "2024-08-17 10:00:00 WIB")
}

func TestExtractEmptyHistory(t *testing.T) {
	result := chat.Extract(nil)
	gt.Equal(t, result.Reply, "")
	gt.Nil(t, result.Data)
	gt.A(t, result.Images).Length(0)
}
