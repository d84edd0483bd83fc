package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() *Options {
	opts := DefaultOptions()
	opts.RetryDelay = time.Millisecond
	return opts
}

func TestURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "ja,en;q=0.8", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>賃貸マンション</h1></body></html>"))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.HTML, "<h1>賃貸マンション</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, PlatformUnknown, result.Platform)
}

func TestURL_DecodesShiftJIS(t *testing.T) {
	// "家賃" in Shift_JIS
	sjis := []byte{0x89, 0xc6, 0x92, 0xc0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=Shift_JIS")
		_, _ = w.Write(append(append([]byte("<html><body>"), sjis...), []byte("</body></html>")...))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Contains(t, result.HTML, "家賃")
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-valid-url", nil)
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
	assert.False(t, IsRetryable(err))
}

func TestURL_HTTPError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, fastOptions())
	require.Error(t, err)
	assert.NotNil(t, result) // Result is returned even on error
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.False(t, fetchErr.Retryable)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestURL_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, fastOptions())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestURL_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	opts := fastOptions()
	opts.MaxRetries = 1
	_, err := URL(context.Background(), server.URL, opts)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtractMainText_WithMainElement(t *testing.T) {
	html := `
	<html>
		<body>
			<nav>Navigation</nav>
			<main>
				<h1>パークハイツ渋谷</h1>
				<p>南向きの明るいお部屋です。</p>
			</main>
			<footer>Footer</footer>
		</body>
	</html>`

	text, err := ExtractMainText(html, DefaultTextSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "パークハイツ渋谷")
	assert.Contains(t, text, "南向きの明るいお部屋です。")
	assert.NotContains(t, text, "Navigation")
	assert.NotContains(t, text, "Footer")
}

func TestExtractMainText_TableCellsOnOwnLines(t *testing.T) {
	html := `<html><body><main><table>
		<tr><th>賃料</th><td>8.5万円</td></tr>
		<tr><th>間取り</th><td>1LDK</td></tr>
	</table></main></body></html>`

	text, err := ExtractMainText(html, DefaultTextSelectors())
	require.NoError(t, err)
	assert.Equal(t, "賃料\n8.5万円\n間取り\n1LDK", text)
}

func TestExtractMainText_RemovesBoilerplateClasses(t *testing.T) {
	html := `
	<html>
		<body>
			<div class="cookie-consent">Cookieの設定</div>
			<div class="top-banner">キャンペーン実施中</div>
			<div class="property-detail">
				<p>駅徒歩5分</p>
			</div>
		</body>
	</html>`

	text, err := ExtractMainText(html, ListingSelectors())
	require.NoError(t, err)
	assert.Equal(t, "駅徒歩5分", text)
}

func TestExtractMainText_FallbackToBody(t *testing.T) {
	html := `<html><body><div>Some content here.</div></body></html>`

	text, err := ExtractMainText(html, DefaultTextSelectors())
	require.NoError(t, err)
	assert.Equal(t, "Some content here.", text)
}

func TestExtractMainText_NoiseSelectors(t *testing.T) {
	html := `
	<html>
		<body>
			<main>
				<p>敷金1ヶ月 礼金なし</p>
				<div class="recommend">この物件を見た人はこんな物件も見ています</div>
				<form>お問い合わせ</form>
			</main>
		</body>
	</html>`

	text, err := ExtractMainText(html, DefaultTextSelectors(), PlatformNoiseSelectors(PlatformSUUMO)...)
	require.NoError(t, err)
	assert.Equal(t, "敷金1ヶ月 礼金なし", text)
}

func TestCleanWhitespace(t *testing.T) {
	assert.Equal(t, "a b\nc", cleanWhitespace("  a \t b \n\n\n   c  \n"))
	assert.Equal(t, "", cleanWhitespace(" \n \n"))
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("Loading..."))
	assert.False(t, ShouldUseBrowser(string(make([]rune, MinContentLength))+"x"))

	// 499 Japanese characters is still short even though it is >1000 bytes
	short := []rune{}
	for range MinContentLength - 1 {
		short = append(short, '物')
	}
	assert.True(t, ShouldUseBrowser(string(short)))
}
