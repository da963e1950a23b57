// Пакет availability — вычисление статуса контейнера по статусам его файлов.
//
// Приоритет правил (первое совпадение):
//   - хотя бы один REPLICATING → REPLICATING
//   - хотя бы один STUCK → STUCK
//   - хотя бы один нераспознанный статус → UNKNOWN
//   - ни одного OK → NOT_AVAILABLE
//   - есть OK и есть NOT_AVAILABLE → PARTIALLY_AVAILABLE
//   - иначе (все OK) → AVAILABLE
//
// Статус контейнера не хранится отдельно и пересчитывается на каждом снимке.
package availability

import "github.com/bigkaa/goartstore/availability-module/internal/domain/model"

// DeriveStatus вычисляет статус контейнера из набора файлов.
// nil — набор ещё не загружен (ContainerNotLoaded), пустой набор — AVAILABLE.
func DeriveStatus(files []model.FileDetails) model.ContainerStatus {
	if files == nil {
		return model.ContainerNotLoaded
	}
	if len(files) == 0 {
		return model.ContainerAvailable
	}

	var available, notAvailable, replicating, stuck, unknown bool
	for _, f := range files {
		switch f.Status {
		case model.FileOK:
			available = true
		case model.FileNotAvailable:
			notAvailable = true
		case model.FileReplicating:
			replicating = true
		case model.FileStuck:
			stuck = true
		default:
			unknown = true
		}
	}

	switch {
	case replicating:
		return model.ContainerReplicating
	case stuck:
		return model.ContainerStuck
	case unknown:
		return model.ContainerUnknown
	case !available:
		return model.ContainerNotAvailable
	case notAvailable:
		return model.ContainerPartiallyAvailable
	default:
		return model.ContainerAvailable
	}
}

// IsPolling сообщает, нужно ли продолжать опрос контейнера в этом статусе.
func IsPolling(status model.ContainerStatus) bool {
	return status == model.ContainerReplicating
}

// CanMakeAvailable сообщает, доступно ли действие «сделать доступным».
func CanMakeAvailable(status model.ContainerStatus) bool {
	return status == model.ContainerNotAvailable || status == model.ContainerPartiallyAvailable
}

// OptimisticReplicating возвращает копию набора, в которой все файлы,
// кроме OK, помечены как REPLICATING. Исходный срез не изменяется.
func OptimisticReplicating(files []model.FileDetails) []model.FileDetails {
	if files == nil {
		return nil
	}
	result := make([]model.FileDetails, len(files))
	for i, f := range files {
		result[i] = f
		if f.Status != model.FileOK {
			result[i].Status = model.FileReplicating
		}
	}
	return result
}
