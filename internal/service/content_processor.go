package service

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Максимальный объем текста, участвующий в оценке
const maxContentLengthForScoring = 1 * 1024 * 1024

// ProcessedContent — результат обработки содержимого файла
type ProcessedContent struct {
	TextContent      string
	Score            float64
	ProcessingTimeMS float64
}

// ContentProcessor извлекает текст из загруженных данных и считает
// оценку содержимого. Любой сбой деградирует в нулевую оценку,
// загрузка из-за обработчика не прерывается.
type ContentProcessor struct{}

func NewContentProcessor() *ContentProcessor {
	return &ContentProcessor{}
}

// Process обрабатывает содержимое файла. Текстовые файлы декодируются
// и оцениваются по содержимому, бинарные получают оценку по размеру.
func (p *ContentProcessor) Process(data []byte, contentType string) ProcessedContent {
	start := time.Now()

	result := ProcessedContent{}
	if strings.HasPrefix(contentType, "text/") {
		sample := data
		if len(sample) > maxContentLengthForScoring {
			sample = sample[:maxContentLengthForScoring]
		}
		result.TextContent = decodeText(sample)
		result.Score = scoreText(result.TextContent)
	} else {
		// Для бинарных файлов — базовая оценка по размеру
		score := float64(len(data)) / (1024 * 1024)
		if score > 100 {
			score = 100
		}
		result.Score = score
	}

	result.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000
	return result
}

// decodeText декодирует байты в строку: UTF-8, а при невалидной
// последовательности — Latin-1 (каждый байт становится код-пойнтом)
func decodeText(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if utf8.Valid(data) {
		return string(data)
	}

	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// scoreText считает оценку текста от 0 до 100 по объему,
// разнообразию слов и структуре
func scoreText(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	words := strings.Fields(text)
	wordCount := float64(len(words))
	charCount := float64(len(text))
	lineCount := float64(strings.Count(text, "\n") + 1)

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(w)] = struct{}{}
	}
	uniqueWords := float64(len(unique))

	avgWordLength := charCount
	if wordCount > 0 {
		avgWordLength = charCount / wordCount
	}

	baseScore := minFloat(50, wordCount*0.05+charCount*0.005)
	complexityBonus := minFloat(30, uniqueWords*0.1+avgWordLength*2)
	structureBonus := minFloat(20, lineCount*0.2)

	total := baseScore + complexityBonus + structureBonus
	if total > 100 {
		total = 100
	}
	// Округляем до двух знаков
	return float64(int(total*100+0.5)) / 100
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
