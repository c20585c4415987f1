package domain

import "time"

// MealAnalysis nutrition estimate for a meal photo
type MealAnalysis struct {
	FoodName    string    `json:"foodName"`
	Ingredients []string  `json:"ingredients"`
	PortionSize string    `json:"portionSize"`
	Weight      float64   `json:"weight"`
	Calories    float64   `json:"calories"`
	Protein     float64   `json:"protein"`
	Carbs       float64   `json:"carbs"`
	Fats        float64   `json:"fats"`
	Fiber       float64   `json:"fiber"`
	Sugar       float64   `json:"sugar"`
	HealthScore int       `json:"healthScore"`
	Advice      string    `json:"advice"`
	Provider    string    `json:"provider"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
}

// AnalyzeMealRequest meal photo as base64 plus its mime type
type AnalyzeMealRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	MimeType    string `json:"mime_type" binding:"required"`
}

// CoachReplyRequest free-text question to the AI coach
type CoachReplyRequest struct {
	Message string `json:"message" binding:"required"`
	Context string `json:"context"`
}

// CoachReplyResponse AI coach answer
type CoachReplyResponse struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider,omitempty"`
}
