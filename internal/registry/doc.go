// Package registry содержит реестр stage'ей extraction-конвейера.
//
// Реестр — статическое отображение идентификатор → stage (handler,
// профиль ресурсов, prerequisites). Отвечает за валидацию графа
// зависимостей при регистрации (дубликаты, висячие ссылки, циклы)
// и за детерминированный топологический порядок выполнения.
package registry
