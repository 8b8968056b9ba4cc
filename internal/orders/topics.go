package orders

// Topic kafka. Key pesan = correlation_id (order_id), supaya semua event 1 order
// masuk partisi yang sama dan urutannya terjaga.
const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status.changed"
	TopicStockLow           = "product.stock.low"
)

// Topics yang diproduksi oleh service ini.
var Topics = []string{TopicOrderPlaced, TopicOrderStatusChanged, TopicStockLow}
