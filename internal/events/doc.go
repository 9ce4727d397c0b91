// Package events публикует события жизненного цикла конвейера в RabbitMQ.
//
// События (stage.started, stage.completed, run.aborted) — рекомендательные
// метаданные для внешнего слоя batch-submission. Публикация опциональна:
// без брокера конвейер работает как обычно.
package events
