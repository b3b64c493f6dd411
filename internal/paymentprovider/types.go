package paymentprovider

const (
	// MetadataCartID — ключ метаданных checkout-сессии с идентификатором
	// пользователя. Записывается при создании платёжной ссылки,
	// читается один раз при фулфилменте.
	MetadataCartID = "cartID"
	// MetadataUserID — ключ метаданных подписки с идентификатором
	// пользователя; используется при обработке событий продления.
	MetadataUserID = "user_id"
)

// CreatePaymentLinkRequest описывает параметры создания платёжной ссылки.
type CreatePaymentLinkRequest struct {
	PriceID   string // Идентификатор цены провайдера для выбранного тарифа
	CartID    string // Идентификатор пользователя, попадает в метаданные
	PlanTitle string // Название тарифа для страницы подтверждения
}

// CreatePaymentLinkResponse — результат создания платёжной ссылки.
type CreatePaymentLinkResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
