package chat_completions

import (
	"reflect"
	"testing"

	"github.com/tidwall/gjson"
)

func TestNormalizeRequest_MaxTokensClamp(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"absent", `{"messages":[{"role":"user","content":"hi"}]}`, 512},
		{"too small", `{"max_tokens":10}`, 2048},
		{"zero", `{"max_tokens":0}`, 2048},
		{"lower bound", `{"max_tokens":64}`, 64},
		{"in range", `{"max_tokens":1000}`, 1000},
		{"upper bound", `{"max_tokens":8192}`, 8192},
		{"too large", `{"max_tokens":50000}`, 8192},
		{"string", `{"max_tokens":"300"}`, 300},
		{"garbage", `{"max_tokens":"lots"}`, 512},
		{"null", `{"max_tokens":null}`, 512},
		{"beyond int32", `{"max_tokens":3000000000}`, 8192},
		{"exponent", `{"max_tokens":1e10}`, 8192},
		{"negative beyond int32", `{"max_tokens":-3000000000}`, 2048},
		{"string overflow", `{"max_tokens":"99999999999999999999"}`, 8192},
		{"negative string overflow", `{"max_tokens":"-99999999999999999999"}`, 2048},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeRequest([]byte(tc.body)).GenerationConfig.MaxOutputTokens
			if got != tc.want {
				t.Fatalf("maxOutputTokens = %d, want %d", got, tc.want)
			}
			out := ConvertOpenAIRequestToGemini([]byte(tc.body))
			if v := gjson.GetBytes(out, "generationConfig.maxOutputTokens").Int(); v != int64(tc.want) {
				t.Fatalf("rendered maxOutputTokens = %d, want %d", v, tc.want)
			}
		})
	}
}

func TestNormalizeRequest_SystemMessagesFolded(t *testing.T) {
	body := `{"messages":[
		{"role":"system","content":"A"},
		{"role":"user","content":"q1"},
		{"role":"system","content":"   "},
		{"role":"assistant","content":"a1"},
		{"role":" system ","content":"B"},
		{"role":"user","content":"q2"}
	]}`
	n := NormalizeRequest([]byte(body))
	if n.SystemInstruction == nil || *n.SystemInstruction != "A\n\nB" {
		t.Fatalf("system instruction = %v, want %q", n.SystemInstruction, "A\n\nB")
	}
	want := []Content{
		{Role: RoleUser, Text: "q1"},
		{Role: RoleModel, Text: "a1"},
		{Role: RoleUser, Text: "q2"},
	}
	if !reflect.DeepEqual(n.Contents, want) {
		t.Fatalf("contents = %+v, want %+v", n.Contents, want)
	}

	out := n.GeminiJSON()
	if got := gjson.GetBytes(out, "system_instruction.parts.0.text").String(); got != "A\n\nB" {
		t.Fatalf("system_instruction text = %q", got)
	}
	if got := gjson.GetBytes(out, "contents.1.role").String(); got != "model" {
		t.Fatalf("contents.1.role = %q, want model", got)
	}
	if got := gjson.GetBytes(out, "contents.#").Int(); got != 3 {
		t.Fatalf("contents count = %d, want 3", got)
	}
}

func TestNormalizeRequest_NoSystemInstructionWhenBlank(t *testing.T) {
	n := NormalizeRequest([]byte(`{"messages":[{"role":"system","content":""},{"role":"user","content":"hi"}]}`))
	if n.SystemInstruction != nil {
		t.Fatalf("expected no system instruction, got %q", *n.SystemInstruction)
	}
	if gjson.GetBytes(n.GeminiJSON(), "system_instruction").Exists() {
		t.Fatal("system_instruction must be omitted")
	}
}

func TestNormalizeRequest_PlaceholderTurn(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"messages":[]}`,
		`{"messages":[{"role":"system","content":"only system"}]}`,
	} {
		n := NormalizeRequest([]byte(body))
		want := []Content{{Role: RoleUser, Text: "Hello"}}
		if !reflect.DeepEqual(n.Contents, want) {
			t.Fatalf("%s: contents = %+v, want %+v", body, n.Contents, want)
		}
	}
}

func TestNormalizeRequest_UnknownRolesBecomeUser(t *testing.T) {
	n := NormalizeRequest([]byte(`{"messages":[{"role":"tool","content":"x"},{"content":"y"},{"role":"Assistant","content":"z"}]}`))
	for i, c := range n.Contents {
		if c.Role != RoleUser {
			t.Fatalf("contents[%d].role = %q, want user", i, c.Role)
		}
	}
}

func TestNormalizeRequest_ContentShapes(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":null},
		{"role":"user","content":[{"type":"text","text":"Hello"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":" world"}]}
	]}`
	n := NormalizeRequest([]byte(body))
	if n.Contents[0].Text != "" {
		t.Fatalf("null content = %q, want empty", n.Contents[0].Text)
	}
	if n.Contents[1].Text != "Hello world" {
		t.Fatalf("part content = %q, want %q", n.Contents[1].Text, "Hello world")
	}
}

func TestNormalizeRequest_Sampling(t *testing.T) {
	n := NormalizeRequest([]byte(`{"temperature":0.7,"top_p":"0.9","top_k":40.9}`))
	gc := n.GenerationConfig
	if gc.Temperature == nil || *gc.Temperature != 0.7 {
		t.Fatalf("temperature = %v", gc.Temperature)
	}
	if gc.TopP == nil || *gc.TopP != 0.9 {
		t.Fatalf("topP = %v", gc.TopP)
	}
	if gc.TopK == nil || *gc.TopK != 40 {
		t.Fatalf("topK = %v", gc.TopK)
	}

	out := n.GeminiJSON()
	if got := gjson.GetBytes(out, "generationConfig.topK").Int(); got != 40 {
		t.Fatalf("rendered topK = %d", got)
	}

	n = NormalizeRequest([]byte(`{"temperature":null,"top_k":"many"}`))
	if n.GenerationConfig.Temperature != nil {
		t.Fatal("null temperature must be omitted")
	}
	if n.GenerationConfig.TopK != nil {
		t.Fatal("non-integer top_k must be omitted")
	}
	out = n.GeminiJSON()
	for _, path := range []string{"generationConfig.temperature", "generationConfig.topP", "generationConfig.topK", "generationConfig.stopSequences"} {
		if gjson.GetBytes(out, path).Exists() {
			t.Fatalf("%s must be omitted: %s", path, out)
		}
	}
}

func TestNormalizeRequest_Stop(t *testing.T) {
	cases := []struct {
		body string
		want []string
	}{
		{`{"stop":"END"}`, []string{"END"}},
		{`{"stop":["a",1,"b",null]}`, []string{"a", "b"}},
		{`{"stop":42}`, nil},
		{`{"stop":{"x":"y"}}`, nil},
		{`{}`, nil},
	}
	for _, tc := range cases {
		got := NormalizeRequest([]byte(tc.body)).GenerationConfig.StopSequences
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: stop = %#v, want %#v", tc.body, got, tc.want)
		}
	}
}

func TestConvertOpenAIRequestToGemini_Deterministic(t *testing.T) {
	body := []byte(`{"model":"ignored","messages":[{"role":"system","content":"S"},{"role":"user","content":"hi"}],"temperature":0.2,"stop":["x"],"max_tokens":100}`)
	first := ConvertOpenAIRequestToGemini(body)
	for i := 0; i < 10; i++ {
		if got := ConvertOpenAIRequestToGemini(body); string(got) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, got, first)
		}
	}
	if gjson.GetBytes(first, "model").Exists() {
		t.Fatal("model must not be forwarded in the body")
	}
}
