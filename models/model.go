package models

// InvokeRequest представляет тело запроса на вызов операции
type InvokeRequest struct {
	ConnectionParameters map[string]any `json:"connectionParameters"`
	Parameters           map[string]any `json:"parameters"`
}

// InvokeResponse представляет успешный ответ операции
type InvokeResponse struct {
	Body any `json:"body"`
}

// ErrorResponse представляет структуру ошибки
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail - код, сообщение и причина ошибки без секретов
type ErrorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	InnerError string `json:"innerError,omitempty"`
}

// ServiceSummary - элемент списка сервисов
type ServiceSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// HealthResponse - ответ проверки живости
type HealthResponse struct {
	Status   string   `json:"status"`
	Services []string `json:"services"`
}
