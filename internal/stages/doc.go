// Package stages содержит handler'ы стадий extraction-конвейера.
//
// Стадии повторяют исходный workflow выгрузки историй пациентов:
//
//	1  cohort   — определение когорты (случаи + контроли)
//	2  subjects — файл информации о субъектах
//	3a extract  — выгрузка и стандартизация событий наблюдений
//	3b sort     — добавление BIRTH-событий и сортировка
//	3c map      — маппинг medcode'ов в медицинские термины
//	4  rules    — шаблон правил очистки
//	5  clean    — применение курированных правил очистки
//
// Диагностические утилиты (coverage, trajectory) живут вне графа
// зависимостей и запускаются только через debug.
//
// Сырые данные — tab-separated .txt выгрузки; производные артефакты —
// CSV с заголовком.
package stages
