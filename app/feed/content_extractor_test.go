package feed

import (
	"strings"
	"testing"
)

func TestContentExtractor_Run_ArticlePage(t *testing.T) {
	extractor := NewContentExtractor()

	var paragraphs []string
	for i := 0; i < 6; i++ {
		paragraphs = append(paragraphs, `<p>The city council met on Tuesday to discuss the new bridge over the Terek river. Residents asked about traffic during construction and the schedule of the works.</p>`)
	}

	htmlContent := `
	<!DOCTYPE html>
	<html>
	<head><title>Council meeting</title></head>
	<body>
		<header><nav>Home | News | Contacts</nav></header>
		<article>
			<h1>Council discusses the new bridge</h1>
			` + strings.Join(paragraphs, "\n") + `
		</article>
		<footer><p>Copyright 2024 Local News</p></footer>
	</body>
	</html>
	`

	result, err := extractor.Run([]byte(htmlContent), "https://news.example.com/2024/bridge")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "new bridge over the Terek river") {
		t.Errorf("Expected extracted content to contain article text")
	}
	if strings.Contains(result, "Copyright 2024") {
		t.Errorf("Expected extracted content to exclude footer")
	}

	cleaned := CleanHTML(result)
	if strings.Contains(cleaned, "<p>") {
		t.Errorf("Expected cleaned readability output to be plain text, got: %s", cleaned)
	}
}

func TestContentExtractor_Run_EmptyData(t *testing.T) {
	extractor := NewContentExtractor()

	result, err := extractor.Run(nil, "")
	if err == nil {
		t.Fatal("Expected error for empty data")
	}
	if result != "" {
		t.Errorf("Expected empty result for empty data")
	}
	if err.Error() != "HTML data is empty" {
		t.Errorf("Expected error message 'HTML data is empty', got '%s'", err.Error())
	}
}

func TestContentExtractor_Run_ScriptsRemoved(t *testing.T) {
	extractor := NewContentExtractor()

	htmlContent := `
	<html>
	<head><style>body { font-family: Arial; }</style></head>
	<body>
		<script>var trackingCode = "analytics";</script>
		<article>
			<p>This is the main content that should be extracted without any scripts or styles interfering. The article contains substantial text content that meets the readability requirements.</p>
			<p>The content extraction should focus on the meaningful text and ignore technical elements. This paragraph provides additional context and information for readers.</p>
		</article>
	</body>
	</html>
	`

	result, err := extractor.Run([]byte(htmlContent), "not a url %%")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Contains(result, "trackingCode") {
		t.Errorf("Expected extracted content to exclude script content")
	}
	if strings.Contains(result, "font-family") {
		t.Errorf("Expected extracted content to exclude style content")
	}
}
